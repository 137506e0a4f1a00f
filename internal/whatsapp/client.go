package whatsapp

import (
	"context"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

type Client struct {
	WAClient  *whatsmeow.Client
	handler   *Handler
	container *sqlstore.Container
}

func NewClient(handler *Handler, dbPath string) (*Client, error) {
	dbLog := waLog.Stdout("Database", "INFO", true)
	clientLog := waLog.Stdout("Client", "INFO", true)

	container, err := sqlstore.New(context.Background(), "sqlite3", "file:"+dbPath+"?_foreign_keys=on", dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get device store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, clientLog)

	c := &Client{
		WAClient:  waClient,
		handler:   handler,
		container: container,
	}

	if handler != nil {
		waClient.AddEventHandler(handler.HandleEvent)
	}

	return c, nil
}

// Connect logs in, showing a QR code on first pairing.
func (c *Client) Connect(ctx context.Context) error {
	if c.WAClient.Store.ID != nil {
		return c.WAClient.Connect()
	}

	// New device, pair via QR
	qrChan, err := c.WAClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	if err := c.WAClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	go func() {
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				DisplayQR(evt.Code)
			case "success":
				fmt.Println("WhatsApp paired successfully!")
				return
			case "timeout":
				fmt.Println("WhatsApp QR code expired, restart to pair again")
				return
			}
		}
	}()

	return nil
}

func (c *Client) Disconnect() {
	c.WAClient.Disconnect()
}

func (c *Client) IsLoggedIn() bool {
	return c.WAClient.Store.ID != nil
}

// SendDirectMessage sends a private text message to a user. userID may be a
// bare phone number or a full JID.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) error {
	jid, err := parseUserJID(userID)
	if err != nil {
		return err
	}

	_, err = c.WAClient.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", userID, err)
	}

	return nil
}

func parseUserJID(userID string) (types.JID, error) {
	if userID == "" {
		return types.JID{}, fmt.Errorf("empty whatsapp user id")
	}

	for _, r := range userID {
		if r == '@' {
			jid, err := types.ParseJID(userID)
			if err != nil {
				return types.JID{}, fmt.Errorf("invalid whatsapp JID %q: %w", userID, err)
			}
			return jid, nil
		}
	}

	return types.NewJID(userID, types.DefaultUserServer), nil
}
