package domain

// Channel is the marketing medium category a touchpoint belongs to. The set
// is closed; touchpoints ingested with an unrecognised channel are stored
// as ChannelOther.
type Channel string

const (
	ChannelPaidSocial Channel = "paid_social"
	ChannelPaidSearch Channel = "paid_search"
	ChannelDisplay    Channel = "display"
	ChannelEmail      Channel = "email"
	ChannelOrganic    Channel = "organic"
	ChannelReferral   Channel = "referral"
	ChannelDirect     Channel = "direct"
	ChannelOther      Channel = "other"
)

// Channels lists every known channel.
var Channels = []Channel{
	ChannelPaidSocial,
	ChannelPaidSearch,
	ChannelDisplay,
	ChannelEmail,
	ChannelOrganic,
	ChannelReferral,
	ChannelDirect,
	ChannelOther,
}

// ParseChannel maps a raw label onto the closed channel set, falling back
// to ChannelOther for anything unrecognised.
func ParseChannel(s string) Channel {
	for _, c := range Channels {
		if string(c) == s {
			return c
		}
	}
	return ChannelOther
}
