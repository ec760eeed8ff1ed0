package transit

import "testing"

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input    string
		expected Direction
		system   System
	}{
		{"uptown", Uptown, SystemSubway},
		{"Downtown", Downtown, SystemSubway},
		{" inbound ", Inbound, SystemMetroNorth},
		{"OUTBOUND", Outbound, SystemMetroNorth},
		{"westbound", Westbound, SystemLIRR},
		{"eastbound", Eastbound, SystemLIRR},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			d, err := ParseDirection(tc.input)
			if err != nil {
				t.Fatalf("ParseDirection(%q) failed: %v", tc.input, err)
			}
			if d != tc.expected {
				t.Errorf("ParseDirection(%q) = %v, expected %v", tc.input, d, tc.expected)
			}
			if d.System() != tc.system {
				t.Errorf("%v.System() = %v, expected %v", d, d.System(), tc.system)
			}
			if d.Opposite().Opposite() != d {
				t.Errorf("%v.Opposite() is not an involution", d)
			}
			if d.Opposite().System() != d.System() {
				t.Errorf("%v.Opposite() crosses systems", d)
			}
		})
	}

	if _, err := ParseDirection("northbound"); err == nil {
		t.Error("ParseDirection(northbound) should fail")
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		system   System
		input    string
		expected string
	}{
		{SystemSubway, "a", "A"},
		{SystemSubway, "7", "7"},
		{SystemSubway, "SIR", "SI"},
		{SystemSubway, "GS", "GS"},
		{SystemMetroNorth, "Harlem", "Harlem"},
		{SystemMetroNorth, "Danbury", "New Haven"},
		{SystemLIRR, "Babylon Branch", "Babylon"},
		{SystemLIRR, "City Terminal", "City Terminal"},
	}

	for _, tc := range tests {
		t.Run(tc.system.String()+"/"+tc.input, func(t *testing.T) {
			l, err := ParseLine(tc.system, tc.input)
			if err != nil {
				t.Fatalf("ParseLine failed: %v", err)
			}
			if l.Code != tc.expected || l.System != tc.system {
				t.Errorf("ParseLine(%v, %q) = %+v, expected code %q", tc.system, tc.input, l, tc.expected)
			}
		})
	}

	if _, err := ParseLine(SystemMetroNorth, "A"); err == nil {
		t.Error("subway line should not resolve in Metro-North")
	}
}

func TestLinesAreDistinctAcrossSystems(t *testing.T) {
	a := MustLine(SystemSubway, "A")
	b := TrainLine{System: SystemLIRR, Code: "A"}
	if a == b {
		t.Error("lines with equal codes in different systems must not be equal")
	}
	if got := len(Lines(SystemLIRR)); got != 11 {
		t.Errorf("len(Lines(LIRR)) = %d, expected 11", got)
	}
}

func TestParseSystem(t *testing.T) {
	for _, s := range AllSystems() {
		got, err := ParseSystem(s.String())
		if err != nil || got != s {
			t.Errorf("ParseSystem(%q) = %v, %v", s.String(), got, err)
		}
		dirs := s.Directions()
		if dirs[0].System() != s || dirs[1].System() != s {
			t.Errorf("%v.Directions() = %v, expected directions of the same system", s, dirs)
		}
	}
}
