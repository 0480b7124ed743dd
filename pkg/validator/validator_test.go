package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type backupPayload struct {
	Type        string `json:"type" validate:"required,oneof=full incremental"`
	Description string `json:"description" validate:"max=20"`
}

type reportQuery struct {
	Start string `form:"start" validate:"omitempty,isodate"`
	End   string `form:"end" validate:"omitempty,isodate"`
}

func TestValidateStructSuccess(t *testing.T) {
	require.NoError(t, ValidateStruct(backupPayload{Type: "full", Description: "nightly"}))
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(backupPayload{Type: "partial", Description: "a description that is far too long"})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 2)

	fields := []string{vErrs[0].Field, vErrs[1].Field}
	require.ElementsMatch(t, []string{"type", "description"}, fields)
	require.Contains(t, err.Error(), "type failed on oneof=full incremental")
}

func TestISODateRule(t *testing.T) {
	require.NoError(t, ValidateStruct(reportQuery{Start: "2024-03-01", End: "2024-03-31"}))
	require.NoError(t, ValidateStruct(reportQuery{}))

	err := ValidateStruct(reportQuery{Start: "03/01/2024"})
	require.Error(t, err)
	vErrs := err.(ValidationErrors)
	require.Equal(t, "start", vErrs[0].Field)
	require.Equal(t, "isodate", vErrs[0].Tag)
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("veloigp", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "veloigp"
	})
	require.NoError(t, err)

	type custom struct {
		Value string `validate:"veloigp"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "veloigp"}))
	require.Error(t, ValidateStruct(custom{Value: "other"}))
}
