package config

import "testing"

func validBasic() Config {
	return Config{
		Senders:        2,
		Receivers:      2,
		Threads:        1,
		Queuing:        "fifo",
		RateLimit:      1.0,
		MinMessageSize: 10,
		MaxMessageSize: 100,
		Algorithm:      Basic,
		SenderControl: []RawControlEntry{
			{Tick: 0, Control: "1.0"},
			{Tick: 1000, Control: "0.0"},
		},
	}
}

func TestValidateAcceptsMinimalBasicConfig(t *testing.T) {
	cfg := validBasic()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsZeroSenders(t *testing.T) {
	cfg := validBasic()
	cfg.Senders = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for senders=0")
	}
}

func TestValidateRejectsBadQueuing(t *testing.T) {
	cfg := validBasic()
	cfg.Queuing = "priority"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for queuing=priority")
	}
}

func TestValidateRejectsInvertedMessageSizeRange(t *testing.T) {
	cfg := validBasic()
	cfg.MaxMessageSize = cfg.MinMessageSize - 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for max_message_size < min_message_size")
	}
}

func TestValidateRelayRequiresMaxOutstanding(t *testing.T) {
	cfg := validBasic()
	cfg.Algorithm = Relay
	cfg.Relays = 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error: sender_config.max_outstanding missing")
	}
	cfg.SenderConfig.MaxOutstanding = 2
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDistRequiresConsistentStealThreshold(t *testing.T) {
	cfg := validBasic()
	cfg.Algorithm = Dist
	cfg.Senders = 4
	cfg.SenderConfig.StealRate = true
	cfg.SenderConfig.Params = DistSenderParams{
		MaxTokens:              50,
		StealThreshold:         0.1, // 0.1*50 = 5 < max_message_size 100
		TokenAskFactor:         0.5,
		RateAskFactor:          0.5,
		MaxRequestsOutstanding: 2,
		GiveTokenThreshold:     0.2,
		GiveRateThreshold:      0.2,
		MaxRateGiveFactor:      0.5,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error: steal_threshold*max_tokens below max_message_size")
	}
}

func TestValidateDistAcceptsConsistentConfig(t *testing.T) {
	cfg := validBasic()
	cfg.Algorithm = Dist
	cfg.Senders = 4
	cfg.SenderConfig.StealTokens = true
	cfg.SenderConfig.StealRate = true
	cfg.SenderConfig.Params = DistSenderParams{
		MaxTokens:              200,
		StealThreshold:         0.6,
		TokenAskFactor:         0.5,
		RateAskFactor:          0.5,
		MaxRequestsOutstanding: 2,
		GiveTokenThreshold:     0.2,
		GiveRateThreshold:      0.2,
		MaxRateGiveFactor:      0.5,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDistRejectsMaxRequestsOutstandingTooLarge(t *testing.T) {
	cfg := validBasic()
	cfg.Algorithm = Dist
	cfg.Senders = 4
	cfg.SenderConfig.Params = DistSenderParams{
		MaxTokens:              200,
		StealThreshold:         0.6,
		TokenAskFactor:         0.5,
		RateAskFactor:          0.5,
		MaxRequestsOutstanding: 4, // must be <= senders-1 == 3
		GiveTokenThreshold:     0.2,
		GiveRateThreshold:      0.2,
		MaxRateGiveFactor:      0.5,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error: max_requests_outstanding exceeds senders-1")
	}
}
