package telephony

import (
	"encoding/xml"
	"fmt"
)

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// StreamTwiML renders the voice-webhook reply that bridges the call
// into the media-stream websocket at wsURL.
func StreamTwiML(wsURL string) ([]byte, error) {
	body, err := xml.Marshal(twimlResponse{Connect: twimlConnect{Stream: twimlStream{URL: wsURL}}})
	if err != nil {
		return nil, fmt.Errorf("telephony: render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
