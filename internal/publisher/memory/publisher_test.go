package memory

import (
	"context"
	"testing"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	ctx := context.Background()

	id, err := pub.Publish(ctx, "scrape-jobs", map[string]string{"job_id": "job-1"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id != "memory-1" {
		t.Fatalf("id = %q, want memory-1", id)
	}
	if _, err := pub.Publish(ctx, "scrape-venues", "hello"); err != nil {
		t.Fatalf("publish second: %v", err)
	}

	all := pub.Messages()
	if len(all) != 2 {
		t.Fatalf("messages = %d, want 2", len(all))
	}
	if all[0].Topic != "scrape-jobs" || all[1].Topic != "scrape-venues" {
		t.Fatalf("topics = %q, %q", all[0].Topic, all[1].Topic)
	}

	jobs := pub.MessagesFor("scrape-jobs")
	if len(jobs) != 1 {
		t.Fatalf("scrape-jobs messages = %d, want 1", len(jobs))
	}
	payload, ok := jobs[0].Payload.(map[string]string)
	if !ok || payload["job_id"] != "job-1" {
		t.Fatalf("payload = %#v", jobs[0].Payload)
	}
}
