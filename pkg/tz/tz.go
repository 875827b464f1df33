package tz

import "time"

// Tokyo is the Asia/Tokyo location (JST, no DST). Event times typed by users are
// read in this zone unless a guild overrides it.
var Tokyo *time.Location

func init() {
	var err error
	Tokyo, err = time.LoadLocation("Asia/Tokyo")
	if err != nil {
		Tokyo = time.FixedZone("JST", 9*60*60)
	}
}
