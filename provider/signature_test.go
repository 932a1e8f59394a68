package provider

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func TestSign_KnownVector(t *testing.T) {
	canonical := CanonicalString([]Field{
		{Name: "total_amount", Value: "100"},
		{Name: "transaction_uuid", Value: "test-uuid-12345"},
		{Name: "product_code", Value: "EPAYTEST"},
	})

	assert.Equal(t, "total_amount=100,transaction_uuid=test-uuid-12345,product_code=EPAYTEST", canonical)
	assert.Equal(t, "mejidFx/yrEfHcjN+GDMndkPeriQnaiJbaqUCCVvZMY=", Sign(canonical, testSecret))
}

func TestSign_Deterministic(t *testing.T) {
	inputs := []string{
		"",
		"total_amount=100,transaction_uuid=a,product_code=EPAYTEST",
		"total_amount=110.5,transaction_uuid=241028-abc,product_code=EPAYTEST",
	}
	for _, in := range inputs {
		assert.Equal(t, Sign(in, testSecret), Sign(in, testSecret), in)
	}
}

func TestSign_Sensitivity(t *testing.T) {
	base := "total_amount=100,transaction_uuid=test-uuid-12345,product_code=EPAYTEST"
	variants := []string{
		"total_amount=101,transaction_uuid=test-uuid-12345,product_code=EPAYTEST",
		"total_amount=100,transaction_uuid=test-uuid-12346,product_code=EPAYTEST",
		"total_amount=100,transaction_uuid=test-uuid-12345,product_code=EPAYTESt",
		"total_amount=100,transaction_uuid=test-uuid-12345,product_code=EPAYTEST ",
	}

	want := Sign(base, testSecret)
	for _, v := range variants {
		assert.NotEqual(t, want, Sign(v, testSecret), v)
	}
	assert.NotEqual(t, want, Sign(base, testSecret+"x"))
}

func TestCanonicalString_KeepsOrder(t *testing.T) {
	fields := []Field{{"b", "2"}, {"a", "1"}, {"c", "3"}}
	assert.Equal(t, "b=2,a=1,c=3", CanonicalString(fields))
	assert.Equal(t, "", CanonicalString(nil))
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{100, "100"},
		{100.5, "100.5"},
		{110.50, "110.5"},
		{0, "0"},
		{0.1 + 0.2, "0.30000000000000004"},
		{1234567.89, "1234567.89"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.in))
	}
}

func TestFieldValue(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"nil is absent", nil, "", false},
		{"string", "abc", "abc", true},
		{"empty string is present", "", "", true},
		{"json number keeps literal", json.Number("1000.0"), "1000.0", true},
		{"decimal", decimal.RequireFromString("10.50"), "10.5", true},
		{"float", 100.0, "100", true},
		{"int", 42, "42", true},
		{"int64", int64(7), "7", true},
		{"bool", true, "true", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FieldValue(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitFieldNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitFieldNames("a, b ,c"))
	assert.Equal(t, []string{"total_amount"}, SplitFieldNames("total_amount"))
}

func TestSignedFields_MissingField(t *testing.T) {
	data := map[string]any{"total_amount": "100", "product_code": nil}

	_, err := SignedFields(data, "total_amount,transaction_uuid,product_code")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignature)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "transaction_uuid", e.Field)
	assert.Contains(t, e.Error(), "missing signed field: transaction_uuid")
}

func TestVerify(t *testing.T) {
	names := "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"
	data := map[string]any{
		"transaction_code":   "000AWEO",
		"status":             "COMPLETE",
		"total_amount":       json.Number("1000.0"),
		"transaction_uuid":   "250610-162413",
		"product_code":       "EPAYTEST",
		"signed_field_names": names,
	}
	signature := "ZJ1KAZi+3F0Lv2VQES9Yq9WcqUPI83gn1Fu4G1sBGAY="

	ok, err := Verify(data, names, signature, testSecret)
	require.NoError(t, err)
	assert.True(t, ok)

	data["status"] = "PENDING"
	ok, err = Verify(data, names, signature, testSecret)
	require.NoError(t, err)
	assert.False(t, ok)

	delete(data, "status")
	ok, err = Verify(data, names, signature, testSecret)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrSignature)
}
