package constants

// Kind identifies the variant of a trial container.
type Kind string

const (
	// KindDocket is a collection of unjudged trials. Reference order is not informative.
	KindDocket Kind = "docket"

	// KindObservations is a collection of judged trials. Selected references come first.
	KindObservations Kind = "observations"
)

// Valid returns true if the kind is a recognized value.
func (k Kind) Valid() bool {
	switch k {
	case KindDocket, KindObservations:
		return true
	}
	return false
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}
