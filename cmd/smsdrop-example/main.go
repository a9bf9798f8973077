package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edevtech/smsdrop-go/internal/config"
	"github.com/edevtech/smsdrop-go/pkg/smsdrop"
	"github.com/edevtech/smsdrop-go/pkg/tokenstore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	limit := flag.Int("limit", 20, "number of campaigns to list")
	sender := flag.String("sender", "", "sender for -send/-campaign")
	message := flag.String("message", "", "message for -send/-campaign")
	sendTo := flag.String("send", "", "send a single message to this phone number")
	recipients := flag.String("campaign", "", "launch a campaign to the phones in this file (.csv or one per line)")
	title := flag.String("title", "", "campaign title")
	deferBy := flag.Duration("defer-by", 0, "delay the message or campaign by this duration (whole seconds)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := tokenstore.Open(ctx, cfg.TokenStore.Options())
	if err != nil {
		log.Fatalf("Failed to open token store: %v", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	client, err := smsdrop.New(cfg.SMSDrop.Email, cfg.SMSDrop.Password,
		smsdrop.WithBaseURL(cfg.SMSDrop.BaseURL),
		smsdrop.WithTimeout(cfg.SMSDrop.Timeout()),
		smsdrop.WithTokenStore(store),
		smsdrop.WithLogLevel(cfg.Log.Level),
	)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	if err := run(ctx, client, *limit); err != nil {
		log.Fatalf("%v", err)
	}

	switch {
	case *sendTo != "":
		var opts []smsdrop.SendOption
		if *deferBy > 0 {
			opts = append(opts, smsdrop.SendAfter(*deferBy))
		}
		ack, err := client.SendMessage(ctx, *message, *sender, *sendTo, opts...)
		if err != nil {
			log.Fatalf("Send failed: %v", err)
		}
		fmt.Printf("Sent: campaign %s (%s)\n", ack.CampaignID, ack.Status)

	case *recipients != "":
		phones, err := smsdrop.ParsePhonesFile(*recipients)
		if err != nil {
			log.Fatalf("Failed to read recipients: %v", err)
		}
		campaign := &smsdrop.Campaign{
			Title:         *title,
			Message:       *message,
			Sender:        *sender,
			RecipientList: phones,
			DeferBy:       *deferBy,
		}
		if err := launch(ctx, client, campaign); err != nil {
			log.Fatalf("Launch failed: %v", err)
		}
	}
}

// run prints the account overview.
func run(ctx context.Context, client *smsdrop.Client, limit int) error {
	profile, err := client.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	fmt.Println("------------User-------------")
	fmt.Printf("%s  active=%t verified=%t\n", profile.Email, profile.IsActive, profile.IsVerified)

	sub, err := client.GetSubscription(ctx)
	if err != nil {
		return fmt.Errorf("read subscription: %w", err)
	}
	fmt.Println("--------Subscription---------")
	fmt.Printf("%d SMS left (since %s)\n", sub.NbrSMS, sub.CreatedAt.Format(time.RFC3339))

	campaigns, err := client.GetCampaigns(ctx, 0, limit)
	if err != nil {
		return fmt.Errorf("read campaigns: %w", err)
	}
	fmt.Println("----------Campaigns----------")
	for _, c := range campaigns {
		fmt.Printf("%s  %-10s %5.1f%%  %s\n", c.ID, c.Status, c.DeliveryPercentage, c.Title)
	}
	return nil
}

// launch submits campaign and polls it until it is scheduled or reaches a
// terminal status.
func launch(ctx context.Context, client *smsdrop.Client, campaign *smsdrop.Campaign) error {
	err := client.Launch(ctx, campaign)
	if errors.Is(err, smsdrop.ErrInsufficientCredits) {
		fmt.Printf("Campaign %s stored but not sent: not enough credits\n", campaign.ID)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Launched %s (%s)\n", campaign.ID, campaign.Status)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for !campaign.Status.IsTerminal() && campaign.Status != smsdrop.StatusScheduled {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := client.Refresh(ctx, campaign); err != nil {
			return err
		}
		fmt.Printf("  %s  %.1f%% delivered\n", campaign.Status, campaign.DeliveryPercentage)
	}
	return nil
}
