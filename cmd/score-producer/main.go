// score-producer publishes synthetic game-over events to the score topic.
// Used to exercise the ingestion path and to populate a leaderboard for
// development.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// scoreEvent mirrors the submission shape the consumer decodes. EventID is
// carried for log correlation only; the consumer ignores unknown fields.
type scoreEvent struct {
	EventID   string `json:"event_id,omitempty"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Score     int64  `json:"score"`
}

var firstNames = []string{
	"Alex", "Sam", "Jordan", "Casey", "Riley", "Morgan", "Taylor", "Quinn",
	"Avery", "Dakota", "Reese", "Skyler", "Emerson", "Finley", "Rowan", "Sage",
}

var usernamePrefixes = []string{
	"phoenix", "shadow", "thunder", "storm", "blaze", "ninja", "dragon", "wolf",
	"hawk", "viper", "ghost", "titan", "frost", "nova", "raven", "omega",
}

func playerFor(idx int) (int64, string, string) {
	userID := int64(1000 + idx)
	username := fmt.Sprintf("%s%d", usernamePrefixes[idx%len(usernamePrefixes)], idx/len(usernamePrefixes)+1)
	firstName := firstNames[idx%len(firstNames)]
	return userID, username, firstName
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "game-scores", "Kafka topic")
	totalPlayers := flag.Int("players", 200, "Number of distinct players to simulate")
	rate := flag.Int("rate", 20, "Submissions per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Printf("score-producer: brokers=%s topic=%s players=%d rate=%d/s\n",
		*brokers, *topic, *totalPlayers, *rate)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendEvent := func(event scoreEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(fmt.Sprintf("%d", event.UserID)),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
		}
	}

	shutdown := func(reason string) {
		fmt.Printf("\n%s\n", reason)
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Done. Sent: %d, Errors: %d\n",
			atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	interval := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var sent int64

	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached, shutting down...")
				return
			}

			idx := rand.Intn(*totalPlayers)
			userID, username, firstName := playerFor(idx)

			// Scores cluster low with occasional spikes so high scores keep
			// moving over a long run
			score := int64(rand.Intn(300))
			if rand.Intn(10) == 0 {
				score += int64(rand.Intn(2000))
			}

			sendEvent(scoreEvent{
				EventID:   uuid.New().String(),
				UserID:    userID,
				Username:  username,
				FirstName: firstName,
				Score:     score,
			})
			atomic.AddInt64(&sent, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Acked: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&sent),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
