package objectstore

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Enabled:   true,
		Endpoint:  "localhost:9000",
		AccessKey: "a",
		SecretKey: "b",
		Region:    "us-east-1",
		Bucket:    "laue-runs",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	invalid := valid
	invalid.Endpoint = "http://localhost:9000"
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for scheme in endpoint")
	}

	invalid = valid
	invalid.Bucket = " "
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for blank bucket")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LAUE_ARCHIVE_ENABLED", "false")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Enabled {
		t.Fatalf("expected archive disabled")
	}

	t.Setenv("LAUE_ARCHIVE_ENABLED", "true")
	t.Setenv("LAUE_MINIO_ACCESS_KEY", "")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("ConfigFromEnv() expected error without credentials")
	}

	t.Setenv("LAUE_MINIO_ACCESS_KEY", "laue")
	t.Setenv("LAUE_MINIO_SECRET_KEY", "lauesecret")
	cfg, err = ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Bucket != "laue-runs" {
		t.Fatalf("Bucket=%q", cfg.Bucket)
	}
}
