package tensor

// DataType describes how the values of a tensor are interpreted.
//
// Storage is always float64. Int64 tensors hold integral values only and are
// used where an operation requires indices (embedding lookups, gathers).
type DataType int

const (
	// Float64 is the default data type.
	Float64 DataType = iota
	// Int64 marks a tensor of integral values.
	Int64
)

// String returns the safetensors-compatible name of the data type.
func (d DataType) String() string {
	switch d {
	case Float64:
		return "F64"
	case Int64:
		return "I64"
	default:
		return "unknown"
	}
}

// ParseDataType converts a safetensors dtype name into a DataType.
func ParseDataType(name string) (DataType, bool) {
	switch name {
	case "F64":
		return Float64, true
	case "I64":
		return Int64, true
	default:
		return 0, false
	}
}
