package myuplink

import "testing"

func TestIsBooleanPoint(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		want  bool
	}{
		{
			name: "on off toggle",
			point: Point{EnumValues: []EnumValue{
				{Value: "0", Text: "off"},
				{Value: "1", Text: "on"},
			}},
			want: true,
		},
		{
			name:  "no enums",
			point: Point{},
			want:  false,
		},
		{
			name: "three states",
			point: Point{EnumValues: []EnumValue{
				{Value: "0", Text: "off"},
				{Value: "1", Text: "eco"},
				{Value: "2", Text: "comfort"},
			}},
			want: false,
		},
		{
			name: "two states but not binary",
			point: Point{EnumValues: []EnumValue{
				{Value: "10", Text: "heating"},
				{Value: "20", Text: "cooling"},
			}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBooleanPoint(tt.point); got != tt.want {
				t.Errorf("isBooleanPoint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnumText(t *testing.T) {
	point := Point{
		Value:  20,
		StrVal: "20",
		EnumValues: []EnumValue{
			{Value: "10", Text: "heating"},
			{Value: "20", Text: "cooling"},
		},
	}
	if got := enumText(point); got != "cooling" {
		t.Errorf("enumText() = %q, want %q", got, "cooling")
	}

	point.Value = 30
	point.StrVal = "30"
	if got := enumText(point); got != "30" {
		t.Errorf("enumText() fallback = %q, want %q", got, "30")
	}
}
