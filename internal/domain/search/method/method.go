package method

// Method is the consolidation method applied to per-strategy results.
type Method string

// Consolidation method constants.
const (
	Merge    Method = "merge"
	Rank     Method = "rank"
	Fallback Method = "fallback"
	Weighted Method = "weighted"
)

// Default is used when the caller does not choose a method.
const Default = Rank

// IsValid checks if the method is one of the supported values.
func (m Method) IsValid() bool {
	return m == Merge || m == Rank || m == Fallback || m == Weighted
}
