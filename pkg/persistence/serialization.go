package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalCampaignRecord serializes a CampaignRecord to JSON bytes.
func MarshalCampaignRecord(cr *CampaignRecord) ([]byte, error) {
	if cr == nil {
		return nil, fmt.Errorf("cannot marshal nil CampaignRecord")
	}

	data, err := json.Marshal(cr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CampaignRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalCampaignRecord deserializes a CampaignRecord from JSON bytes.
func UnmarshalCampaignRecord(data []byte) (*CampaignRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var cr CampaignRecord
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to CampaignRecord: %w", err)
	}

	return &cr, nil
}

// MarshalClaimRecord serializes a ClaimRecord to JSON bytes.
func MarshalClaimRecord(cr *ClaimRecord) ([]byte, error) {
	if cr == nil {
		return nil, fmt.Errorf("cannot marshal nil ClaimRecord")
	}

	return json.Marshal(cr)
}

// UnmarshalClaimRecord deserializes a ClaimRecord from JSON bytes.
func UnmarshalClaimRecord(data []byte) (*ClaimRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var cr ClaimRecord
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to ClaimRecord: %w", err)
	}

	return &cr, nil
}

// MarshalRootVersionRecord serializes a RootVersionRecord to JSON bytes.
func MarshalRootVersionRecord(rv *RootVersionRecord) ([]byte, error) {
	if rv == nil {
		return nil, fmt.Errorf("cannot marshal nil RootVersionRecord")
	}

	return json.Marshal(rv)
}

// UnmarshalRootVersionRecord deserializes a RootVersionRecord from JSON bytes.
func UnmarshalRootVersionRecord(data []byte) (*RootVersionRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var rv RootVersionRecord
	if err := json.Unmarshal(data, &rv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to RootVersionRecord: %w", err)
	}

	return &rv, nil
}
