package vm

import "testing"

func TestSmallIntRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, MaxSmallInt, MinSmallInt} {
		v := FromSmallInt(n)
		if !v.IsSmallInt() {
			t.Fatalf("FromSmallInt(%d).IsSmallInt() = false", n)
		}
		if v.SmallInt() != n {
			t.Errorf("SmallInt() = %d, want %d", v.SmallInt(), n)
		}
	}
}

func TestFromSmallIntOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range small int")
		}
	}()
	FromSmallInt(MaxSmallInt + 1)
}

func TestTryFromSmallIntOutOfRange(t *testing.T) {
	if _, ok := TryFromSmallInt(MaxSmallInt + 1); ok {
		t.Error("TryFromSmallInt should report false out of range")
	}
	if v, ok := TryFromSmallInt(7); !ok || v.SmallInt() != 7 {
		t.Error("TryFromSmallInt should succeed in range")
	}
}

func TestFloat64RoundTrip(t *testing.T) {
	v := FromFloat64(3.5)
	if !v.IsFloat() {
		t.Fatal("expected a float value")
	}
	if v.Float64() != 3.5 {
		t.Errorf("Float64() = %v, want 3.5", v.Float64())
	}
}

func TestOrdinaryNaNIsFloat(t *testing.T) {
	nan := FromFloat64(nanAsFloat())
	if !nan.IsFloat() {
		t.Error("an untagged quiet NaN should still report IsFloat")
	}
}

func nanAsFloat() float64 {
	var zero float64
	return zero / zero
}

func TestSpecialValues(t *testing.T) {
	if !Nil.IsNil() || !Nil.IsSpecial() {
		t.Error("Nil should be nil and special")
	}
	if !True.IsTrue() || !True.IsBool() {
		t.Error("True should be true and a bool")
	}
	if !False.IsFalse() || !False.IsBool() {
		t.Error("False should be false and a bool")
	}
	if Nil.IsBool() {
		t.Error("Nil should not be a bool")
	}
}

func TestFromBool(t *testing.T) {
	if FromBool(true) != True {
		t.Error("FromBool(true) should equal True")
	}
	if FromBool(false) != False {
		t.Error("FromBool(false) should equal False")
	}
}

func TestBoolPanicsOnNonBool(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic calling Bool on a non-bool value")
		}
	}()
	Nil.Bool()
}

func TestIsTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nil, false},
		{False, false},
		{True, true},
		{FromSmallInt(0), true},
		{FromFloat64(0), true},
	}
	for _, c := range cases {
		if got := c.v.IsTruthy(); got != c.want {
			t.Errorf("IsTruthy() = %v, want %v", got, c.want)
		}
	}
}

func TestSymbolRoundTrip(t *testing.T) {
	v := FromSymbolID(9)
	if !v.IsSymbol() {
		t.Fatal("expected a symbol value")
	}
	if v.SymbolID() != 9 {
		t.Errorf("SymbolID() = %d, want 9", v.SymbolID())
	}
}

func TestIsImmediate(t *testing.T) {
	if FromSmallInt(1).IsImmediate() != true {
		t.Error("a small int should be immediate")
	}
	obj := NewObject(1, 0)
	if obj.ToValue().IsImmediate() {
		t.Error("an object value should not be immediate")
	}
}
