package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// MinterRole is keccak256("MINTER_ROLE").
	MinterRole = crypto.Keccak256Hash([]byte("MINTER_ROLE"))
	// DefaultAdminRole is the zero hash; holders may grant any role.
	DefaultAdminRole = common.Hash{}

	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// ERC-165 interface ids reported by contract info.
var InterfaceIDs = map[string][4]byte{
	"ERC165":         {0x01, 0xff, 0xc9, 0xa7},
	"ERC721":         {0x80, 0xac, 0x58, 0xcd},
	"ERC721Metadata": {0x5b, 0x5e, 0x13, 0x9f},
	"AccessControl":  {0x79, 0x65, 0xdb, 0x0b},
}

// RoleByName resolves the role names accepted by the admin API. Any other
// value is parsed as a 32-byte hex role id.
func RoleByName(name string) (common.Hash, bool) {
	switch name {
	case "MINTER_ROLE", "minter":
		return MinterRole, true
	case "DEFAULT_ADMIN_ROLE", "admin":
		return DefaultAdminRole, true
	}
	b := common.FromHex(name)
	if len(b) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}
