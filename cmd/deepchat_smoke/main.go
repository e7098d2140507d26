package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

var (
	baseURL = "http://localhost:3000/api/deepchat/v1"
	token   string
)

func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

func sendRequest(method, path string, body interface{}) (int, map[string]interface{}, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, out, nil
}

func step(title, method, path string, body interface{}) map[string]interface{} {
	color.Yellow("\n%s", title)
	status, resp, err := sendRequest(method, path, body)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	if status >= 400 {
		color.Red("Status: %d", status)
	} else {
		color.Green("Status: %d", status)
	}
	prettyPrint(resp)
	return resp
}

// checkHealth reads /healthz next to the API root. It needs no token.
func checkHealth() {
	root := strings.TrimSuffix(baseURL, "/api/deepchat/v1")
	resp, err := http.Get(root + "/healthz")
	if err != nil {
		color.Red("Health check failed: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	color.Yellow("\n0. Health")
	prettyPrint(out)
}

func data(resp map[string]interface{}) map[string]interface{} {
	d, _ := resp["data"].(map[string]interface{})
	return d
}

func main() {
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		color.Red("JWT_SECRET is not set")
		os.Exit(1)
	}
	if url := os.Getenv("DEEPCHAT_SMOKE_URL"); url != "" {
		baseURL = url
	}
	gemID := "smoke-gem"
	if len(os.Args) > 1 {
		gemID = os.Args[1]
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "smoke-user",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		color.Red("Failed to sign token: %v", err)
		os.Exit(1)
	}
	token = signed

	color.Cyan("Deep chat smoke test (gem %s)", gemID)
	checkHealth()

	step("1. Open chat", "POST", "/gems/"+gemID+"/open", map[string]interface{}{
		"description": "Smoke test gem",
		"suggestions": []map[string]interface{}{
			{"id": "g1", "text": "Di cosa parla questo argomento?", "element": map[string]interface{}{"name": "general"}},
		},
	})

	answered := data(step("2. Ask", "POST", "/gems/"+gemID+"/ask", map[string]interface{}{
		"question": "Di cosa parla questo argomento?",
		"origin":   "suggested",
	}))

	if id, ok := answered["id"].(string); ok {
		if followUps, _ := answered["follow_ups"].([]interface{}); len(followUps) > 0 {
			step("3. Follow-up", "POST", "/gems/"+gemID+"/turns/"+id+"/follow-ups/0", nil)
		}
	}

	panel := data(step("4. Panel", "GET", "/gems/"+gemID+"/panel", nil))
	sessionID, _ := panel["session_id"].(string)

	step("5. Sessions", "GET", "/gems/"+gemID+"/sessions?limit=5", nil)
	step("6. New session", "POST", "/gems/"+gemID+"/sessions/new", nil)

	if sessionID != "" {
		step("7. Reload previous session", "POST", "/gems/"+gemID+"/sessions/"+sessionID+"/use", nil)
		step("8. Delete session", "DELETE", "/gems/"+gemID+"/sessions/"+sessionID, nil)
	}

	step("9. Daily session", "GET", "/daily-session", nil)
	color.Cyan("\nDone")
}
