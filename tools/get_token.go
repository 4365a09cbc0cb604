package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

func main() {
	tenantID := os.Getenv("GRAPH_TENANT_ID")
	clientID := os.Getenv("GRAPH_CLIENT_ID")

	if tenantID == "" || clientID == "" {
		log.Fatal("Please set GRAPH_TENANT_ID and GRAPH_CLIENT_ID environment variables")
	}

	config := &oauth2.Config{
		ClientID: clientID,
		Scopes:   []string{"Mail.Read", "Mail.Send", "offline_access"},
		Endpoint: microsoft.AzureADEndpoint(tenantID),
	}

	ctx := context.Background()

	resp, err := config.DeviceAuth(ctx)
	if err != nil {
		log.Fatalf("Unable to start device authorization: %v", err)
	}

	fmt.Printf("Go to %s and enter the code: %s\n", resp.VerificationURI, resp.UserCode)
	fmt.Println("\nWaiting for authorization...")

	tok, err := config.DeviceAccessToken(ctx, resp)
	if err != nil {
		log.Fatalf("Unable to retrieve token: %v", err)
	}

	fmt.Printf("\nRefresh Token: %s\n", tok.RefreshToken)
	fmt.Printf("Access Token: %s\n", tok.AccessToken)
	fmt.Printf("Token Type: %s\n", tok.TokenType)
	fmt.Printf("Expiry: %v\n", tok.Expiry)

	fmt.Println("\nUse the refresh token to seed an account without the browser flow:")
	fmt.Printf("export GRAPH_REFRESH_TOKEN=\"%s\"\n", tok.RefreshToken)
}
