package rediskey

import "fmt"

// Campaign keys (global convention across services)
const (
	CampaignPrefix      = "campaign"
	CampaignPoolPrefix  = "campaign:pool"
	CampaignRulesPrefix = "campaign:rules"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildCampaignKey returns "campaign:{campaignID}"
func BuildCampaignKey(campaignID string) string {
	return NamespaceKey(CampaignPrefix, campaignID)
}

// BuildCampaignPoolKey returns "campaign:pool:{campaignID}"
func BuildCampaignPoolKey(campaignID string) string {
	return NamespaceKey(CampaignPoolPrefix, campaignID)
}

// BuildCampaignRulesKey returns "campaign:rules:{campaignID}"
func BuildCampaignRulesKey(campaignID string) string {
	return NamespaceKey(CampaignRulesPrefix, campaignID)
}
