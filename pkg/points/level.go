package points

import "github.com/devqa/devqa.go/pkg/constants"

// LevelInfo is the level projection of a point total.
type LevelInfo struct {
	Level       int     `json:"level" cbor:"level"`
	CurrentXP   int     `json:"currentXP" cbor:"currentXP"`
	NextLevelXP int     `json:"nextLevelXP" cbor:"nextLevelXP"`
	TotalXP     int     `json:"totalXP" cbor:"totalXP"`
	XPNeeded    int     `json:"xpNeeded" cbor:"xpNeeded"`
	Progress    float64 `json:"progress" cbor:"progress"`
}

// Level projects points onto levels of xpPerLevel points each. A
// non-positive xpPerLevel means the default of 100.
func Level(points, xpPerLevel int) LevelInfo {
	if xpPerLevel <= 0 {
		xpPerLevel = constants.DefaultXPPerLevel
	}
	if points < 0 {
		points = 0
	}
	current := points % xpPerLevel
	progress := float64(current) / float64(xpPerLevel)
	progress = min(max(progress, 0), 1)
	return LevelInfo{
		Level:       max(1, points/xpPerLevel+1),
		CurrentXP:   current,
		NextLevelXP: xpPerLevel,
		TotalXP:     points,
		XPNeeded:    xpPerLevel - current,
		Progress:    progress,
	}
}
