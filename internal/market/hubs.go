package market

// Hub is one of the major trade hubs. The list is static game
// knowledge, ordered by traded volume.
type Hub struct {
	System   string `json:"system"`
	SystemID int32  `json:"system_id"`
	Region   string `json:"region"`
	RegionID int32  `json:"region_id"`
}

// Hubs lists the five major trade hubs.
var Hubs = []Hub{
	{System: "Jita", SystemID: 30000142, Region: "The Forge", RegionID: 10000002},
	{System: "Amarr", SystemID: 30002187, Region: "Domain", RegionID: 10000043},
	{System: "Rens", SystemID: 30002510, Region: "Heimatar", RegionID: 10000030},
	{System: "Dodixie", SystemID: 30002659, Region: "Sinq Laison", RegionID: 10000032},
	{System: "Hek", SystemID: 30002053, Region: "Metropolis", RegionID: 10000042},
}

// HubByRegion returns the hub in a region, if that region hosts one.
func HubByRegion(regionID int32) (Hub, bool) {
	for _, h := range Hubs {
		if h.RegionID == regionID {
			return h, true
		}
	}
	return Hub{}, false
}
