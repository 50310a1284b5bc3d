package common

//go:generate enumer -json -type Status -trimprefix Status

type Status int

const (
	StatusNEW Status = iota
	StatusPENDING
	StatusDONE
	StatusFAILED
	StatusRETRY
)
