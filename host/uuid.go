package host

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// accessoryNamespace scopes name-derived accessory ids.
var accessoryNamespace = uuid.MustParse("7c2a1f0e-5b4d-4c8e-9f3a-2d6b8e1c4a70")

// GenerateUUID derives a stable accessory id from data. The same input always
// yields the same id.
func GenerateUUID(data string) string {
	return uuid.NewSHA1(accessoryNamespace, []byte(data)).String()
}

// AccessoryID maps an accessory UUID onto a 64-bit HomeKit accessory id.
// Ids 0 and 1 are never returned; 1 belongs to the bridge.
func AccessoryID(accessoryUUID string) uint64 {
	u, err := uuid.Parse(accessoryUUID)
	if err != nil {
		u = uuid.NewSHA1(accessoryNamespace, []byte(accessoryUUID))
	}
	id := binary.BigEndian.Uint64(u[:8])
	if id <= 1 {
		id += 2
	}
	return id
}
