package metrics

import "testing"

type staticMetric struct {
	name   string
	group  string
	policy Policy
}

func (m staticMetric) Name() string   { return m.name }
func (m staticMetric) Group() string  { return m.group }
func (m staticMetric) Policy() Policy { return m.policy }

func makeRecord(policy Policy, v Value, cnt int, dims Dimension) Record {
	r := Record{cnt: cnt}
	r.SetMetrics(staticMetric{name: "m", group: "g", policy: policy})
	r.SetValue(v)
	r.SetDimension(dims)
	return r
}

func TestRecordMergePolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		a, b   Value
		want   Value
	}{
		{"sum adds", Policy_Sum, 3, 4, 7},
		{"set replaces", Policy_Set, 3, 4, 4},
		{"max keeps larger", Policy_Max, 9, 4, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := makeRecord(tt.policy, tt.a, 1, nil)
			b := makeRecord(tt.policy, tt.b, 1, nil)
			if err := a.Merge(b); err != nil {
				t.Fatal(err)
			}
			if a.Value() != tt.want {
				t.Errorf("merged value = %v, want %v", a.Value(), tt.want)
			}
		})
	}
}

func TestRecordMergeStopwatchAverages(t *testing.T) {
	a := makeRecord(Policy_Stopwatch, 10, 1, nil)
	b := makeRecord(Policy_Stopwatch, 30, 1, nil)
	if err := a.Merge(b); err != nil {
		t.Fatal(err)
	}
	if a.Value() != 20 {
		t.Errorf("stopwatch average = %v, want 20", a.Value())
	}
	if v, cnt := a.RawData(); v != 40 || cnt != 2 {
		t.Errorf("raw data = (%v, %d), want (40, 2)", v, cnt)
	}
}

func TestRecordMergeRejectsMismatch(t *testing.T) {
	a := makeRecord(Policy_Sum, 1, 1, Dimension{"k": "v"})

	b := makeRecord(Policy_Sum, 1, 1, Dimension{"k": "other"})
	if err := a.Merge(b); err == nil {
		t.Error("dimension value mismatch must fail")
	}

	c := makeRecord(Policy_Max, 1, 1, Dimension{"k": "v"})
	if err := a.Merge(c); err == nil {
		t.Error("policy mismatch must fail")
	}

	d := makeRecord(Policy_Sum, 1, 1, nil)
	if err := a.Merge(d); err == nil {
		t.Error("dimension count mismatch must fail")
	}
}

func TestRecordClone(t *testing.T) {
	a := makeRecord(Policy_Sum, 5, 1, Dimension{"k": "v"})
	cp := a.Clone()
	cp.Dimensions()["k"] = "changed"
	if a.Dimensions()["k"] != "v" {
		t.Error("clone must deep-copy dimensions")
	}
}
