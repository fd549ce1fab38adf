package core

import "trekcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Difficulty         = domain.Difficulty
	UserType           = domain.UserType
	EmergencySeverity  = domain.EmergencySeverity
	EmergencyStatus    = domain.EmergencyStatus
	AltitudeRisk       = domain.AltitudeRisk
	Attraction         = domain.Attraction
	Guide              = domain.Guide
	User               = domain.User
	Trek               = domain.Trek
	Booking            = domain.Booking
	Emergency          = domain.Emergency
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	PersistentStore    = domain.PersistentStore
)

const (
	EntityAttraction = domain.EntityAttraction
	EntityGuide      = domain.EntityGuide
	EntityUser       = domain.EntityUser
	EntityTrek       = domain.EntityTrek
	EntityBooking    = domain.EntityBooking
	EntityEmergency  = domain.EntityEmergency
)

const (
	UserTypeUser  = domain.UserTypeUser
	UserTypeAdmin = domain.UserTypeAdmin
	UserTypeGuide = domain.UserTypeGuide
)

const (
	StatusReported   = domain.StatusReported
	StatusInProgress = domain.StatusInProgress
	StatusResolved   = domain.StatusResolved
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
