package audit

import (
	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

// scramClient adapts xdg-go/scram to sarama's SASL/SCRAM hook.
type scramClient struct {
	*scram.Client
	*scram.ClientConversation

	hash scram.HashGeneratorFcn
}

func newSCRAMSHA512Client() sarama.SCRAMClient {
	return &scramClient{hash: scram.SHA512}
}

func (x *scramClient) Begin(userName, password, authzID string) error {
	client, err := x.hash.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}

	x.Client = client
	x.ClientConversation = client.NewConversation()

	return nil
}

func (x *scramClient) Step(challenge string) (string, error) {
	return x.ClientConversation.Step(challenge)
}

func (x *scramClient) Done() bool {
	return x.ClientConversation.Done()
}
