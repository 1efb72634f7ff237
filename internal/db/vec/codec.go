package vec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// EncodeVector packs an embedding as little endian float64s.
func EncodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// DecodeVector unpacks an embedding stored by EncodeVector. Vectors written
// by older versions were stored as JSON arrays, so a payload starting with
// '[' is parsed as one.
func DecodeVector(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}

	i := 0
	for i < len(data) && isWhitespace(data[i]) {
		i++
	}
	if i < len(data) && data[i] == '[' {
		return unmarshalFloats(string(data))
	}

	if len(data)%8 != 0 {
		return nil, fmt.Errorf("expected a multiple of 8 bytes, got %d", len(data))
	}
	v := make([]float64, len(data)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return v, nil
}

func unmarshalFloats(jsonStr string) ([]float64, error) {
	// Avoid trimming the whole string, just check bounds manually
	startIdx, endIdx := 0, len(jsonStr)-1

	// Skip leading whitespace
	for startIdx < len(jsonStr) && isWhitespace(jsonStr[startIdx]) {
		startIdx++
	}

	// Skip trailing whitespace
	for endIdx > startIdx && isWhitespace(jsonStr[endIdx]) {
		endIdx--
	}

	// Check for array brackets
	if startIdx >= endIdx || jsonStr[startIdx] != '[' || jsonStr[endIdx] != ']' {
		return nil, errors.New("input is not a JSON array")
	}

	// Remove the surrounding brackets
	startIdx++
	endIdx--

	// Preallocate result slice - estimate number of values by counting commas
	commaCount := 0
	for i := startIdx; i <= endIdx; i++ {
		if jsonStr[i] == ',' {
			commaCount++
		}
	}
	result := make([]float64, 0, commaCount+1)

	var numStart int
	inNumber := false

	for i := startIdx; i <= endIdx; i++ {
		char := jsonStr[i]

		switch {
		// Digits, decimal point, or signs
		case char >= '0' && char <= '9' || char == '.' || char == '-' || char == 'e' || char == 'E' || char == '+':
			if !inNumber {
				numStart = i
				inNumber = true
			}

		// Whitespace or comma
		case isWhitespace(char) || char == ',':
			if inNumber {
				// Parse the number directly from the substring
				num, err := strconv.ParseFloat(jsonStr[numStart:i], 64)
				if err != nil {
					return nil, err
				}
				result = append(result, num)
				inNumber = false
			}

		default:
			return nil, errors.New("invalid character in JSON array")
		}
	}

	// Handle last number if we ended on a number
	if inNumber {
		num, err := strconv.ParseFloat(jsonStr[numStart:endIdx+1], 64)
		if err != nil {
			return nil, err
		}
		result = append(result, num)
	}

	return result, nil
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
