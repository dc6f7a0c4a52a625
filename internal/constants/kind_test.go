package constants

import "testing"

func TestKind_Valid(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want bool
	}{
		{
			name: "docket is valid",
			kind: KindDocket,
			want: true,
		},
		{
			name: "observations is valid",
			kind: KindObservations,
			want: true,
		},
		{
			name: "empty string is invalid",
			kind: Kind(""),
			want: false,
		},
		{
			name: "arbitrary string is invalid",
			kind: Kind("judged"),
			want: false,
		},
		{
			name: "DOCKET uppercase is invalid",
			kind: Kind("DOCKET"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.want {
				t.Errorf("Kind.Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want string
	}{
		{name: "docket", kind: KindDocket, want: "docket"},
		{name: "observations", kind: KindObservations, want: "observations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("Kind.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
