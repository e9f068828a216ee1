package gateway

import (
	"net/http"
	"strings"

	"github.com/ftcid/AutomatedHomeV2/state"
)

// queryResponse is the JSON envelope of the query surface.
type queryResponse struct {
	Output  any    `json:"output"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// handleQuery serves GET /automatedhome?command=...&room=...&device=...
//
// Supported commands:
//
//	list_device       state of one device, requires room and device
//	list_all_devices  state of every device
//
// The flat topic→value entries are regrouped into a nested object keyed by
// room, then device, then attribute.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	command := r.URL.Query().Get("command")

	var flat map[string]string
	switch command {
	case "list_device":
		room := r.URL.Query().Get("room")
		device := r.URL.Query().Get("device")
		if room == "" || device == "" {
			writeJSON(w, http.StatusBadRequest, queryResponse{
				Status:  "Error",
				Message: "list_device requires room and device",
			})
			return
		}
		flat = s.store.WithPrefix(state.Separator + room + state.Separator + device + state.Separator)

	case "list_all_devices":
		flat = s.store.WithPrefix(state.Separator)

	default:
		writeJSON(w, http.StatusBadRequest, queryResponse{
			Status:  "Error",
			Message: "Command not known",
		})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Output: nestedView(flat),
		Status: "Ok",
	})
}

// nestedView regroups flat topic→value entries into room→device→attribute.
// Topics with fewer than three segments have no device to group under and
// are left out. A deeper topic keeps its trailing segments as one attribute
// key, so /a/b/c/d appears as {"a": {"b": {"c/d": value}}}.
func nestedView(flat map[string]string) map[string]any {
	nested := make(map[string]any)

	for topic, value := range flat {
		parts := strings.SplitN(strings.TrimPrefix(topic, state.Separator), state.Separator, 3)
		if len(parts) < 3 {
			continue
		}
		room, device, attribute := parts[0], parts[1], parts[2]

		roomMap, ok := nested[room].(map[string]any)
		if !ok {
			roomMap = make(map[string]any)
			nested[room] = roomMap
		}
		deviceMap, ok := roomMap[device].(map[string]any)
		if !ok {
			deviceMap = make(map[string]any)
			roomMap[device] = deviceMap
		}
		deviceMap[attribute] = value
	}

	return nested
}
