package enums

import "fmt"

// RewardEntryType classifies append-only reward ledger entries.
type RewardEntryType string

const (
	RewardEntryTypeEarned          RewardEntryType = "earned"
	RewardEntryTypeRedeemed        RewardEntryType = "redeemed"
	RewardEntryTypeAdminAdjustment RewardEntryType = "admin_adjustment"
)

var validRewardEntryTypes = []RewardEntryType{
	RewardEntryTypeEarned,
	RewardEntryTypeRedeemed,
	RewardEntryTypeAdminAdjustment,
}

// String implements fmt.Stringer.
func (t RewardEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known RewardEntryType.
func (t RewardEntryType) IsValid() bool {
	for _, candidate := range validRewardEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseRewardEntryType converts raw input into a RewardEntryType.
func ParseRewardEntryType(value string) (RewardEntryType, error) {
	for _, candidate := range validRewardEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward entry type %q", value)
}
