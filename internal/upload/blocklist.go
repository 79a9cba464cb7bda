package upload

import (
	"encoding/xml"
	"fmt"
)

const blockListHeader = `<?xml version="1.0" encoding="utf-8"?>`

type blockList struct {
	XMLName xml.Name `xml:"BlockList"`
	Latest  []string `xml:"Latest"`
}

// BlockList renders the commit document listing ids in upload order.
func BlockList(ids []string) (string, error) {
	b, err := xml.Marshal(blockList{Latest: ids})
	if err != nil {
		return "", fmt.Errorf("encode block list: %w", err)
	}
	return blockListHeader + string(b), nil
}
