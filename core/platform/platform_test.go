package platform

import "testing"

func TestIsAnyUnix(t *testing.T) {
	tests := []struct {
		osType OsType
		want   bool
	}{
		{Windows, false},
		{Linux, true},
		{Mac, true},
		{OtherUnix, true},
		{Other, false},
	}

	for _, tt := range tests {
		if got := tt.osType.IsAnyUnix(); got != tt.want {
			t.Errorf("%v.IsAnyUnix() = %v, want %v", tt.osType, got, tt.want)
		}
	}
}

func TestPathListSeparator(t *testing.T) {
	if got := Windows.PathListSeparator(); got != ";" {
		t.Errorf("Windows separator = %q, want \";\"", got)
	}
	if got := Linux.PathListSeparator(); got != ":" {
		t.Errorf("Linux separator = %q, want \":\"", got)
	}
}

func TestHostOsIsKnown(t *testing.T) {
	if HostOs() == Other {
		t.Skip("running on an unrecognized host")
	}
}
