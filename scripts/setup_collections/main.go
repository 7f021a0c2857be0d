// Command setup_collections creates the check-in collections on a running
// PocketBase instance through its REST API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const pocketbaseURL = "http://127.0.0.1:8090"

var httpClient = &http.Client{Timeout: 10 * time.Second}

type collection struct {
	ID      string           `json:"id,omitempty"`
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	Fields  []map[string]any `json:"fields"`
	Indexes []string         `json:"indexes,omitempty"`
}

func main() {
	fmt.Println("🚀 PocketBase Collection Setup")
	fmt.Println("==============================")

	_ = godotenv.Load()

	url := getEnv("POCKETBASE_URL", pocketbaseURL)
	token := getEnv("POCKETBASE_TOKEN", "")

	fmt.Printf("Connecting to: %s\n", url)
	if err := checkHealth(url); err != nil {
		fmt.Printf("❌ Cannot connect to PocketBase: %v\n", err)
		os.Exit(1)
	}
	if token == "" {
		fmt.Println("❌ POCKETBASE_TOKEN not set")
		fmt.Println("\nCreate a superuser token and export it:")
		fmt.Println("  export POCKETBASE_TOKEN=your_token_here")
		os.Exit(1)
	}

	fmt.Println("\n📦 Creating collection: identities")
	identitiesID, err := ensureCollection(url, token, identitiesCollection())
	if err != nil {
		fmt.Printf("   ❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n📦 Creating collection: attendance")
	if _, err := ensureCollection(url, token, attendanceCollection(identitiesID)); err != nil {
		fmt.Printf("   ❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n🎉 Setup complete!")
	fmt.Printf("\nAccess Admin UI: %s/_/\n", url)
}

func identitiesCollection() collection {
	return collection{
		Name: "identities",
		Type: "base",
		Fields: []map[string]any{
			textField("code", true, 64),
			textField("first_name", true, 100),
			textField("last_name", true, 100),
			textField("ministry", false, 100),
			textField("network", false, 100),
			{"name": "email", "type": "email"},
			textField("phone", false, 32),
			autodateField("created", true, false),
			autodateField("updated", true, true),
		},
		Indexes: []string{
			"CREATE UNIQUE INDEX `ux_identities_code` ON `identities` (`code`)",
		},
	}
}

func attendanceCollection(identitiesID string) collection {
	return collection{
		Name: "attendance",
		Type: "base",
		Fields: []map[string]any{
			{
				"name":          "identity",
				"type":          "relation",
				"required":      true,
				"collectionId":  identitiesID,
				"maxSelect":     1,
				"cascadeDelete": true,
			},
			{
				"name":     "service_day",
				"type":     "text",
				"required": true,
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},
			{"name": "recorded_at", "type": "date", "required": true},
			textField("station", false, 100),
			autodateField("created", true, false),
		},
		Indexes: []string{
			"CREATE UNIQUE INDEX `ux_attendance_identity_day` ON `attendance` (`identity`, `service_day`)",
			"CREATE INDEX `idx_attendance_service_day` ON `attendance` (`service_day`)",
		},
	}
}

func textField(name string, required bool, max int) map[string]any {
	return map[string]any{
		"name":     name,
		"type":     "text",
		"required": required,
		"max":      max,
	}
}

func autodateField(name string, onCreate, onUpdate bool) map[string]any {
	return map[string]any{
		"name":     name,
		"type":     "autodate",
		"onCreate": onCreate,
		"onUpdate": onUpdate,
	}
}

// ensureCollection creates c unless a collection with that name exists and
// returns its id
func ensureCollection(baseURL, token string, c collection) (string, error) {
	existing, err := getCollection(baseURL, token, c.Name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		fmt.Printf("   Collection exists (%s), skipping\n", existing.ID)
		return existing.ID, nil
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	var created collection
	if err := send(http.MethodPost, baseURL+"/api/collections", token, payload, &created); err != nil {
		return "", fmt.Errorf("create failed: %w", err)
	}
	fmt.Printf("   ✅ Created with %d fields and %d indexes\n", len(c.Fields), len(c.Indexes))
	return created.ID, nil
}

func getCollection(baseURL, token, name string) (*collection, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/collections/"+name, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	var c collection
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse collection: %w", err)
	}
	return &c, nil
}

func send(method, url, token string, payload []byte, out any) error {
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s - %s", resp.Status, string(body))
	}
	return json.Unmarshal(body, out)
}

func checkHealth(baseURL string) error {
	resp, err := httpClient.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %s", resp.Status)
	}
	fmt.Println("✅ PocketBase is running")
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
