package vec

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestVectorRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		input []float64
	}{
		{
			name:  "Nil vector",
			input: nil,
		},
		{
			name:  "Single value",
			input: []float64{3.14159},
		},
		{
			name:  "Negative and zero",
			input: []float64{-1.5, 0, 2.25},
		},
		{
			name:  "Extremes",
			input: []float64{math.MaxFloat64, math.SmallestNonzeroFloat64, -math.MaxFloat64},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeVector(EncodeVector(tc.input))
			if err != nil {
				t.Fatalf("DecodeVector() error = %v", err)
			}
			if len(tc.input) == 0 && len(got) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.input) {
				t.Errorf("DecodeVector() = %v, want %v", got, tc.input)
			}
		})
	}
}

func TestDecodeVectorJSONFallback(t *testing.T) {
	got, err := DecodeVector([]byte("  [1, 2.5, -3.7] "))
	if err != nil {
		t.Fatalf("DecodeVector() error = %v", err)
	}
	want := []float64{1, 2.5, -3.7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeVector() = %v, want %v", got, want)
	}
}

func TestDecodeVectorBadLength(t *testing.T) {
	if _, err := DecodeVector([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("DecodeVector() should have returned an error for a truncated payload")
	}
}

func TestParseJSONFloatArray(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "Empty array",
			input:   "[]",
			wantErr: false,
		},
		{
			name:    "Array with single integer",
			input:   "[42]",
			wantErr: false,
		},
		{
			name:    "Array with single float",
			input:   "[3.14159]",
			wantErr: false,
		},
		{
			name:    "Multiple integers",
			input:   "[1, 2, 3, 4, 5]",
			wantErr: false,
		},
		{
			name:    "Mixed integers and floats",
			input:   "[1, 2.5, -3.7, 4, 5.0]",
			wantErr: false,
		},
		{
			name:    "Scientific notation",
			input:   "[1.2e3, 4.5e-2, 6.7E+1]",
			wantErr: false,
		},
		{
			name:    "Various spacing",
			input:   "[  1.2 ,\n  3.4\t,   5.6   ]",
			wantErr: false,
		},
		{
			name:    "Invalid JSON - no brackets",
			input:   "1, 2, 3",
			wantErr: true,
		},
		{
			name:    "Invalid JSON - non-numeric value",
			input:   "[1, \"hello\", 3]",
			wantErr: true,
		},
		{
			name:    "Invalid JSON - malformed number",
			input:   "[1, 2..5, 3]",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Parse with our custom function
			customResult, customErr := unmarshalFloats(tc.input)

			// Parse with encoding/json
			var stdResult []float64
			stdErr := json.Unmarshal([]byte(tc.input), &stdResult)

			// Check error conditions
			if tc.wantErr {
				if customErr == nil {
					t.Errorf("unmarshalFloats() should have returned an error for input: %s", tc.input)
				}
				return
			}

			// Should not have errors for valid inputs
			if customErr != nil {
				t.Errorf("unmarshalFloats() error = %v, input: %s", customErr, tc.input)
				return
			}

			if stdErr != nil {
				t.Errorf("json.Unmarshal() error = %v, input: %s", stdErr, tc.input)
				return
			}

			// Compare results
			if !reflect.DeepEqual(customResult, stdResult) {
				t.Errorf("unmarshalFloats() = %v, want %v for input: %s", customResult, stdResult, tc.input)
			}
		})
	}
}

func FuzzParseJSONFloatArray(f *testing.F) {
	// Seed corpus with some well-formed inputs
	seeds := []string{
		"[]",
		"[0]",
		"[1.5]",
		"[-2.718]",
		"[1, 2, 3]",
		"[1.2, 3.4, 5.6]",
		"[1e2, 3.4e-5, 6.7e+8]",
		"[  1.2 ,\n  3.4\t,   5.6   ]",
	}

	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		customResult, customErr := unmarshalFloats(input)

		var stdResult []float64
		stdErr := json.Unmarshal([]byte(input), &stdResult)
		if stdErr == nil && stdResult == nil {
			// "null" and friends decode to a nil slice; not an array.
			return
		}

		// If the standard library accepts the input, ours must too and agree.
		if stdErr == nil && customErr != nil {
			t.Errorf("unmarshalFloats() rejected input accepted by encoding/json: %q, err: %v", input, customErr)
		}
		if stdErr == nil && customErr == nil {
			if len(customResult) != len(stdResult) {
				t.Fatalf("length mismatch for %q: got %d, want %d", input, len(customResult), len(stdResult))
			}
			for i := range stdResult {
				if customResult[i] != stdResult[i] {
					t.Errorf("value mismatch for %q at %d: got %v, want %v", input, i, customResult[i], stdResult[i])
				}
			}
		}
	})
}
