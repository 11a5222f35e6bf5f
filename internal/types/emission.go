package types

import (
	"fmt"

	"github.com/samber/lo"
)

// EmissionType represents the emission path of a fiscal document.
// The two variants drive the two code paths through the orchestrator:
// normal (online) emission and offline contingency emission.
type EmissionType string

const (
	EmissionTypeNormal      EmissionType = "NORMAL"
	EmissionTypeContingency EmissionType = "CONTINGENCY"
)

func (t EmissionType) String() string {
	return string(t)
}

// Code returns the single-digit tpEmis marker embedded in the access
// key and the document identification block. 1 = normal, 9 = offline
// contingency.
func (t EmissionType) Code() string {
	if t == EmissionTypeContingency {
		return "9"
	}
	return "1"
}

func (t EmissionType) Validate() error {
	allowed := []EmissionType{
		EmissionTypeNormal,
		EmissionTypeContingency,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid emission type: %s", t)
	}
	return nil
}

// Environment represents the target authority environment
type Environment string

const (
	EnvironmentProduction Environment = "PRODUCTION"
	EnvironmentStaging    Environment = "STAGING"
)

func (e Environment) String() string {
	return string(e)
}

// Code returns the tpAmb digit: 1 = production, 2 = staging
func (e Environment) Code() string {
	if e == EnvironmentProduction {
		return "1"
	}
	return "2"
}

func (e Environment) Validate() error {
	allowed := []Environment{
		EnvironmentProduction,
		EnvironmentStaging,
	}
	if !lo.Contains(allowed, e) {
		return fmt.Errorf("invalid environment: %s", e)
	}
	return nil
}

// EmissionStatus represents the terminal outcome of an emission
type EmissionStatus string

const (
	EmissionStatusAuthorized        EmissionStatus = "AUTHORIZED"
	EmissionStatusRejected          EmissionStatus = "REJECTED"
	EmissionStatusContingencyQueued EmissionStatus = "CONTINGENCY_QUEUED"
)

func (s EmissionStatus) String() string {
	return string(s)
}

// ContingencyStatus represents the lifecycle state of a queued record
type ContingencyStatus string

const (
	ContingencyStatusPending     ContingencyStatus = "PENDING"
	ContingencyStatusTransmitted ContingencyStatus = "TRANSMITTED"
)

func (s ContingencyStatus) String() string {
	return string(s)
}

func (s ContingencyStatus) Validate() error {
	allowed := []ContingencyStatus{
		ContingencyStatusPending,
		ContingencyStatusTransmitted,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid contingency status: %s", s)
	}
	return nil
}

const (
	// DocumentModel is the fixed fiscal model code for consumer receipts
	DocumentModel = "65"

	// SchemaVersion is the canonical document layout version
	SchemaVersion = "4.00"

	// StatusCodeAuthorized is the authority status meaning "accepted"
	StatusCodeAuthorized = "100"

	// StatusCodeServiceHealthy is the authority status meaning
	// "service operating normally" on the health endpoint
	StatusCodeServiceHealthy = "107"
)
