package helpers

// TransferEmitterBytecode deploys a contract without ABI dispatch. Calldata is
// abi.encode(address to, uint256 value) and every call emits
// Transfer(msg.sender, to, value) with the standard ERC-20 topic layout.
//
// init:    PUSH1 0x32 PUSH1 0x0c PUSH1 0 CODECOPY PUSH1 0x32 PUSH1 0 RETURN
// runtime: PUSH1 0x20 PUSH1 0x20 PUSH1 0 CALLDATACOPY     ; mem[0:32] = value
//
//	PUSH1 0 CALLDATALOAD CALLER PUSH32 <Transfer topic>
//	PUSH1 0x20 PUSH1 0 LOG3 STOP
const TransferEmitterBytecode = "0x6032600c60003960326000f3" +
	"6020602060003760003533" +
	"7fddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef" +
	"60206000a300"
