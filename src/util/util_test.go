package util

import (
	"testing"
	"time"
)

func TestTimeDuration(t *testing.T) {
	if TimeDuration(0, 60, time.Second) != time.Minute {
		t.Fatal("expect default value")
	}
	if TimeDuration(-5, 60, time.Second) != time.Minute {
		t.Fatal("expect default value for negative config")
	}
	if TimeDuration(2, 60, time.Minute) != 2*time.Minute {
		t.Fatal("expect config value")
	}
}

func TestAssignString(t *testing.T) {
	if AssignString("", "b", "c") != "b" {
		t.FailNow()
	}
	if AssignString("", "") != "" {
		t.FailNow()
	}
}
