package core

import "testing"

func TestInstrument_IsValid(t *testing.T) {
	for _, inst := range Instruments {
		if !inst.IsValid() {
			t.Errorf("expected %s to be valid", inst)
		}
	}

	if Instrument("hyg").IsValid() {
		t.Error("expected unknown instrument to be invalid")
	}
}

func TestInstrument_Constants(t *testing.T) {
	expected := []string{"cdx", "vix", "etf"}
	for i, inst := range Instruments {
		if string(inst) != expected[i] {
			t.Errorf("Instruments[%d] = %s, want %s", i, inst, expected[i])
		}
	}
}
