package database

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/cta-wave/wave/internal/wave/session"
)

// Backends store records as JSON documents.

func MarshalSession(record *session.Record) ([]byte, error) {
	raw, err := json.Marshal(record)
	return raw, errors.Wrapf(err, "error marshalling session %s", record.Token)
}

func UnmarshalSession(raw []byte) (*session.Record, error) {
	var record session.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling session")
	}
	return &record, nil
}

func MarshalTestLists(record *session.TestListsRecord) ([]byte, error) {
	raw, err := json.Marshal(record)
	return raw, errors.Wrapf(err, "error marshalling test lists of session %s", record.Token)
}

func UnmarshalTestLists(raw []byte) (*session.TestListsRecord, error) {
	var record session.TestListsRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling test lists")
	}
	return &record, nil
}
