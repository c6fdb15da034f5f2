package state

var (
	accountPrefix         = []byte("accounts/")
	compoundPositionPref  = []byte("compound/position/")
	compoundLedgerKeyByte = []byte("compound/ledger")
)

func accountKey(addr []byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr...)
}

func positionKey(addr []byte) []byte {
	return append(append([]byte(nil), compoundPositionPref...), addr...)
}
