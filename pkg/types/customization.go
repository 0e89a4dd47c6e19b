package types

import "github.com/google/uuid"

// DesignSide describes one printed side of a custom garment. A side either
// references a catalog design or carries an uploaded image URL; referenced
// designs price at their catalog price, everything else at the default
// per-side fee.
type DesignSide struct {
	DesignID *uuid.UUID `json:"designId,omitempty"`
	ImageURL string     `json:"imageUrl,omitempty"`
	Position string     `json:"position,omitempty"`
}

// Customization is the per-item print specification for custom orders.
// Stored as a jsonb snapshot on the order line item.
type Customization struct {
	Front *DesignSide `json:"front,omitempty"`
	Back  *DesignSide `json:"back,omitempty"`
	Color string      `json:"color,omitempty"`
}

// Sides returns the non-nil printed sides.
func (c *Customization) Sides() []*DesignSide {
	if c == nil {
		return nil
	}
	sides := make([]*DesignSide, 0, 2)
	if c.Front != nil {
		sides = append(sides, c.Front)
	}
	if c.Back != nil {
		sides = append(sides, c.Back)
	}
	return sides
}
