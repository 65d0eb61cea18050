package snapshot

import "encoding/json"

func unmarshalStrict(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}
