package core

type RequirementType uint8

const (
	// Initial weighs collateral by max ltv, used when new debt is opened.
	Initial RequirementType = iota
	// Maintenance weighs collateral by the liquidation threshold.
	Maintenance
	Equity
)

func (rt RequirementType) String() string {
	switch rt {
	case Initial:
		return "Initial"
	case Maintenance:
		return "Maintenance"
	case Equity:
		return "Equity"
	default:
		return "Unknown"
	}
}
