package cpu

import "testing"

func TestCPU_setFlag(t *testing.T) {
	c := &CPU{}
	c.setFlag(zeroFlag)

	if !c.isSetFlag(zeroFlag) {
		t.Fail()
	}
	if c.isSetFlag(carryFlag) {
		t.Fail()
	}
}

func TestCPU_resetFlag(t *testing.T) {
	c := &CPU{f: 0xF0}
	c.resetFlag(halfCarryFlag)

	if c.isSetFlag(halfCarryFlag) {
		t.Fail()
	}
	if !c.isSetFlag(zeroFlag) || !c.isSetFlag(subFlag) || !c.isSetFlag(carryFlag) {
		t.Fail()
	}
}

func TestCPU_setFlagToCondition(t *testing.T) {
	c := &CPU{}
	c.setFlagToCondition(carryFlag, true)
	if !c.isSetFlag(carryFlag) {
		t.Fail()
	}

	c.setFlagToCondition(carryFlag, false)
	if c.isSetFlag(carryFlag) {
		t.Fail()
	}
}

func TestCPU_flagToBit(t *testing.T) {
	c := &CPU{}
	if c.flagToBit(carryFlag) != 0 {
		t.Fail()
	}

	c.setFlag(carryFlag)
	if c.flagToBit(carryFlag) != 1 {
		t.Fail()
	}
}
