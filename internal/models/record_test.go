package models

import (
	"bytes"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
)

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewBufferString(body))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestSanitizeStripsOwnerAndServerColumns(t *testing.T) {
	body := decode(t, `{
		"title": "Passport",
		"category": "identity",
		"firebase_uid": "someone-else",
		"id": "11111111-1111-1111-1111-111111111111",
		"created_at": "2020-01-01T00:00:00Z"
	}`)

	rec, err := VaultDocuments.Sanitize(body, false)
	require.NoError(t, err)

	assert.Equal(t, Record{"title": "Passport", "category": "identity"}, rec)
}

func TestSanitizeRejectsUnknownFields(t *testing.T) {
	_, err := Journals.Sanitize(decode(t, `{"title":"x","colour":"red","zzz":1}`), false)

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	assert.Contains(t, err.Error(), "colour, zzz")
}

func TestSanitizeCoercesKinds(t *testing.T) {
	body := decode(t, `{
		"title": "Promotion",
		"progress": 40,
		"target_date": "2025-06-30"
	}`)

	rec, err := CareerGoals.Sanitize(body, false)
	require.NoError(t, err)

	assert.Equal(t, int64(40), rec["progress"])
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), rec["target_date"])
}

func TestSanitizeTypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		res  Resource
		body string
	}{
		{"text given number", Journals, `{"title": 5}`},
		{"int given fraction", CareerGoals, `{"title":"t","progress": 1.5}`},
		{"bool given string", Journals, `{"is_private": "yes"}`},
		{"time given garbage", CareerGoals, `{"title":"t","target_date": "soon"}`},
		{"float given string", SafetyAlerts, `{"latitude": "north"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.res.Sanitize(decode(t, tt.body), false)
			assert.True(t, apperr.Is(err, apperr.KindBadRequest), "got %v", err)
		})
	}
}

func TestSanitizeRequired(t *testing.T) {
	_, err := TrustedContacts.Sanitize(decode(t, `{"name":"Mum"}`), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone is required")

	_, err = TrustedContacts.Sanitize(decode(t, `{"name":"  ","phone":"1"}`), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	rec, err := TrustedContacts.Sanitize(decode(t, `{"phone":"+60123"}`), true)
	require.NoError(t, err)
	assert.Equal(t, Record{"phone": "+60123"}, rec)
}

func TestSanitizePartialNeedsAField(t *testing.T) {
	_, err := Journals.Sanitize(decode(t, `{"firebase_uid":"x"}`), true)

	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestSanitizeJSONColumn(t *testing.T) {
	rec, err := Journals.Sanitize(decode(t, `{"tags":["calm", 2, {"n": 1.5}]}`), true)
	require.NoError(t, err)

	assert.Equal(t, []any{"calm", float64(2), map[string]any{"n": 1.5}}, rec["tags"])
}

func TestFilterValue(t *testing.T) {
	assert.Equal(t, "", VaultDocuments.FilterValue(url.Values{}))
	assert.Equal(t, "", VaultDocuments.FilterValue(url.Values{"category": {"all"}}))
	assert.Equal(t, "identity", VaultDocuments.FilterValue(url.Values{"category": {"identity"}}))
	assert.Equal(t, "", TrustedContacts.FilterValue(url.Values{"category": {"x"}}))
	assert.Equal(t, "done", CareerGoals.FilterValue(url.Values{"status": {"done"}}))
}

func TestOrderedKeys(t *testing.T) {
	rec := Record{"category": "a", "title": "b", "bogus": 1, IDColumn: "x"}

	assert.Equal(t, []string{IDColumn, "title", "category"}, VaultDocuments.OrderedKeys(rec))
}
