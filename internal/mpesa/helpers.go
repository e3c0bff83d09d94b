package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Item represents a key-value pair from M-Pesa callback metadata
type Item struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// Metadata keys found in STK callback payloads
const (
	MetaAmount          = "Amount"
	MetaReceiptNumber   = "MpesaReceiptNumber"
	MetaTransactionDate = "TransactionDate"
	MetaPhoneNumber     = "PhoneNumber"
)

// ParseMpesaMetadata converts M-Pesa's metadata array to a clean map
// Input example: [{"Name": "Amount", "Value": 100}, {"Name": "MpesaReceiptNumber", "Value": "ABC123"}]
// Output: {"Amount": 100, "MpesaReceiptNumber": "ABC123"}
func ParseMpesaMetadata(items []Item) map[string]interface{} {
	result := make(map[string]interface{}, len(items))
	for _, item := range items {
		if item.Name != "" {
			result[item.Name] = item.Value
		}
	}
	return result
}

// DecodeMetadata reads a stored mpesa_metadata document. Both the flattened
// map form and the raw callback item array are accepted. Numbers are kept as
// json.Number so 14-digit dates survive intact.
func DecodeMetadata(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]interface{}{}, nil
	}

	var flat map[string]interface{}
	if err := unmarshalNumber(raw, &flat); err == nil {
		if flat == nil {
			flat = map[string]interface{}{}
		}
		return flat, nil
	}

	var items []Item
	if err := unmarshalNumber(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode mpesa metadata: %w", err)
	}
	return ParseMpesaMetadata(items), nil
}

// MetadataString returns the metadata value for key rendered as a string.
func MetadataString(meta map[string]interface{}, key string) (string, bool) {
	v, ok := meta[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, val != ""
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return fmt.Sprint(val), true
	}
}

func unmarshalNumber(raw []byte, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}
