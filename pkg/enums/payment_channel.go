package enums

import "fmt"

// PaymentChannel identifies how an order is settled.
type PaymentChannel string

const (
	PaymentChannelCard       PaymentChannel = "card"
	PaymentChannelUPI        PaymentChannel = "upi"
	PaymentChannelNetbanking PaymentChannel = "netbanking"
	PaymentChannelWallet     PaymentChannel = "wallet"
	PaymentChannelCOD        PaymentChannel = "cod"
)

var validPaymentChannels = []PaymentChannel{
	PaymentChannelCard,
	PaymentChannelUPI,
	PaymentChannelNetbanking,
	PaymentChannelWallet,
	PaymentChannelCOD,
}

// String implements fmt.Stringer.
func (c PaymentChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known PaymentChannel.
func (c PaymentChannel) IsValid() bool {
	for _, candidate := range validPaymentChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsOnline reports whether the channel settles through the payment gateway.
// The online-payment discount applies only to these channels.
func (c PaymentChannel) IsOnline() bool {
	return c.IsValid() && c != PaymentChannelCOD
}

// ParsePaymentChannel converts raw input into a PaymentChannel.
func ParsePaymentChannel(value string) (PaymentChannel, error) {
	for _, candidate := range validPaymentChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment channel %q", value)
}
