package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

// Meddler names usable in `meddler:"column,<name>"` struct tags.
const (
	MeddlerHash    = "hash"
	MeddlerAddress = "address"
	MeddlerUTCTime = "utctime"
)

// TimeLayout is the fixed-width UTC text form of stored instants; it sorts lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

func init() {
	meddler.Register(MeddlerHash, HashMeddler{})
	meddler.Register(MeddlerAddress, AddressMeddler{})
	meddler.Register(MeddlerUTCTime, UTCTimeMeddler{})
}

// HashMeddler handles conversion between common.Hash and its 0x-prefixed lowercase hex column.
type HashMeddler struct{}

func (h HashMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (h HashMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*common.Hash)
	if !ok {
		return fmt.Errorf("expected *common.Hash, got %T", fieldAddr)
	}

	if !ns.Valid {
		*ptr = common.Hash{}
		return nil
	}
	*ptr = common.HexToHash(ns.String)
	return nil
}

func (h HashMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	hash, ok := field.(common.Hash)
	if !ok {
		return nil, fmt.Errorf("expected common.Hash, got %T", field)
	}
	return hash.Hex(), nil
}

// AddressMeddler stores common.Address as lowercase 0x-prefixed hex, the form address filters match against.
type AddressMeddler struct{}

func (a AddressMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (a AddressMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*common.Address)
	if !ok {
		return fmt.Errorf("expected *common.Address, got %T", fieldAddr)
	}

	if !ns.Valid {
		*ptr = common.Address{}
		return nil
	}
	*ptr = common.HexToAddress(ns.String)
	return nil
}

func (a AddressMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	address, ok := field.(common.Address)
	if !ok {
		return nil, fmt.Errorf("expected common.Address, got %T", field)
	}
	return LowerHex(address), nil
}

// UTCTimeMeddler stores time.Time as TimeLayout text in UTC.
type UTCTimeMeddler struct{}

func (u UTCTimeMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (u UTCTimeMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*time.Time)
	if !ok {
		return fmt.Errorf("expected *time.Time, got %T", fieldAddr)
	}

	if !ns.Valid {
		*ptr = time.Time{}
		return nil
	}

	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return fmt.Errorf("failed to parse stored time %q: %w", ns.String, err)
	}
	*ptr = t.UTC()
	return nil
}

func (u UTCTimeMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	t, ok := field.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected time.Time, got %T", field)
	}
	return FormatTime(t), nil
}

// LowerHex renders an address as lowercase 0x-prefixed hex.
func LowerHex(address common.Address) string {
	return strings.ToLower(address.Hex())
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
