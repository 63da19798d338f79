package canonical_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/canonical"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// The expected values were produced with python3 json.dumps(v, sort_keys=True).

func Test_Marshal(t *testing.T) {
	type table struct {
		name  string
		value any
		exp   string
	}

	tt := []table{
		{
			name: "genesis",
			value: map[string]any{
				"transactions":  []any{},
				"timestamp":     1571234580.625,
				"proof":         100,
				"index":         1,
				"previous_hash": "=============",
			},
			exp: `{"index": 1, "previous_hash": "=============", "proof": 100, "timestamp": 1571234580.625, "transactions": []}`,
		},
		{
			name: "mixed",
			value: map[string]any{
				"z": []any{1, 2.5, math.Copysign(0, -1), 1e16, 1.5e-05, 0.0001, 123456789012345.6, true, nil},
				"a": "caf\u00e9 \U0001F600 \"q\" \\ \t\x01",
				"m": map[string]any{"y": 1, "b": []any{}},
			},
			exp: `{"a": "caf\u00e9 \ud83d\ude00 \"q\" \\ \t\u0001", "m": {"b": [], "y": 1}, "z": [1, 2.5, -0.0, 1e+16, 1.5e-05, 0.0001, 123456789012345.6, true, null]}`,
		},
		{
			name: "numbers",
			value: []any{
				json.Number("5"),
				json.Number("5.0"),
				json.Number("1e5"),
				json.Number("123456789012345678901234567890"),
				float64(3),
				int64(-42),
			},
			exp: `[5, 5.0, 100000.0, 123456789012345678901234567890, 3.0, -42]`,
		},
		{
			name:  "out-of-range",
			value: json.RawMessage(`[1E400, -1e400, 1e-400]`),
			exp:   `[Infinity, -Infinity, 0.0]`,
		},
		{
			name: "struct",
			value: struct {
				Sender    string `json:"sender"`
				Recipient string `json:"recipient"`
				Amount    int    `json:"amount"`
			}{"alice", "bob", 5},
			exp: `{"amount": 5, "recipient": "bob", "sender": "alice"}`,
		},
		{
			name:  "raw",
			value: json.RawMessage(`{"b":1.0,"a":[1,"x"]}`),
			exp:   `{"a": [1, "x"], "b": 1.0}`,
		},
	}

	t.Log("Given the need to encode values the same way python miners do.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					got, err := canonical.Marshal(tst.value)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to marshal the value: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to marshal the value.", success, testID)

					if string(got) != tst.exp {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.exp)
						t.Fatalf("\t%s\tTest %d:\tShould get back the canonical form.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the canonical form.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Float(t *testing.T) {
	tt := map[float64]string{
		1:                  "1.0",
		0.1:                "0.1",
		1e-05:              "1e-05",
		9999999999999998:   "9999999999999998.0",
		1e22:               "1e+22",
		1571234567.123456:  "1571234567.123456",
		-2.5:               "-2.5",
		math.Inf(1):        "Infinity",
		math.Inf(-1):       "-Infinity",
		0.000123456789:     "0.000123456789",
		123456789012345678: "1.2345678901234568e+17",
	}

	t.Log("Given the need to format floats like python repr.")
	{
		for f, exp := range tt {
			got := canonical.Float(f)
			if got != exp {
				t.Logf("\t%s\tgot: %s", failed, got)
				t.Logf("\t%s\texp: %s", failed, exp)
				t.Fatalf("\t%s\tShould format %v correctly.", failed, f)
			}
			t.Logf("\t%s\tShould format %v correctly.", success, f)
		}
	}
}

func Test_KeyOrder(t *testing.T) {
	t.Log("Given the need for field order not to matter.")
	{
		a := map[string]any{}
		a["index"] = 2
		a["proof"] = 7
		a["previous_hash"] = "abc"

		b := map[string]any{}
		b["previous_hash"] = "abc"
		b["proof"] = 7
		b["index"] = 2

		ea, err := canonical.Marshal(a)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to marshal the first value: %s", failed, err)
		}
		eb, err := canonical.Marshal(b)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to marshal the second value: %s", failed, err)
		}

		if string(ea) != string(eb) {
			t.Logf("\t%s\tgot: %s", failed, eb)
			t.Logf("\t%s\texp: %s", failed, ea)
			t.Fatalf("\t%s\tShould get the same bytes regardless of insertion order.", failed)
		}
		t.Logf("\t%s\tShould get the same bytes regardless of insertion order.", success)
	}
}
