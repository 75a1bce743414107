package msh

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/as4core/pkg/message"
	"github.com/sirosfoundation/as4core/pkg/pmode"
	"github.com/sirosfoundation/as4core/pkg/reliability"
	"github.com/sirosfoundation/as4core/pkg/security"
	"github.com/sirosfoundation/as4core/pkg/worker"
)

func generateKeyPair(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Organization"},
			CommonName:   "msh.example.com",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(certDER)
	require.NoError(t, err)
	return key, cert
}

type testEndpoints struct {
	sender   *Pipeline
	receiver *Pipeline
	pool     *worker.Pool
	receipts chan *TransportMessage
}

// newTestEndpoints wires two pipelines sharing one trust relationship:
// the sender signs with its own key and encrypts for the receiver; the
// receiver decrypts with its key and verifies against the sender cert.
func newTestEndpoints(t *testing.T, pm *pmode.ProcessingMode) *testEndpoints {
	t.Helper()

	senderKey, senderCert := generateKeyPair(t)
	receiverKey, receiverCert := generateKeyPair(t)

	store, err := pmode.NewStore(nil)
	require.NoError(t, err)
	require.NoError(t, store.Create(pm))

	suppressor := reliability.NewDuplicateSuppressor(time.Hour)
	t.Cleanup(suppressor.Stop)

	pool := worker.NewPool(&worker.Config{Workers: 2}, nil)
	receipts := make(chan *TransportMessage, 8)

	sender, err := NewPipeline(Config{
		Store: store,
		Material: Material{
			LocalKey:    senderKey,
			LocalCert:   senderCert,
			PartnerCert: receiverCert,
		},
	})
	require.NoError(t, err)

	receiver, err := NewPipeline(Config{
		Store:      store,
		Suppressor: suppressor,
		Pool:       pool,
		Material: Material{
			LocalKey:    receiverKey,
			LocalCert:   receiverCert,
			PartnerCert: senderCert,
		},
		ReceiptSender: func(tm *TransportMessage) error {
			receipts <- tm
			return nil
		},
	})
	require.NoError(t, err)

	return &testEndpoints{sender: sender, receiver: receiver, pool: pool, receipts: receipts}
}

func testRequest(payloads ...Payload) *OutboundRequest {
	return &OutboundRequest{
		PModeID:       "test-pmode",
		FromParty:     "org:sender",
		FromPartyType: "urn:oasis:names:tc:ebcore:partyid-type:unregistered",
		ToParty:       "org:receiver",
		ToPartyType:   "urn:oasis:names:tc:ebcore:partyid-type:unregistered",
		Service:       "urn:test:service",
		Action:        "Submit",
		Payloads:      payloads,
	}
}

func TestPipeline_RoundTripSignedEncryptedCompressed(t *testing.T) {
	pm := pmode.Default("test-pmode")
	env := newTestEndpoints(t, pm)

	payload := []byte("<Invoice><Amount>100.00</Amount><Currency>EUR</Currency></Invoice>")
	tm, err := env.sender.Submit(context.Background(), testRequest(
		Payload{Data: payload, ContentType: "application/xml"},
	))
	require.NoError(t, err)
	require.NotEmpty(t, tm.MessageID)
	assert.Contains(t, tm.ContentType, "multipart/related")

	result, err := env.receiver.Receive(context.Background(), tm.Body, tm.ContentType)
	require.NoError(t, err)
	require.NotNil(t, result.UserMessage)
	assert.Equal(t, tm.MessageID, result.UserMessage.MessageInfo.MessageId)
	assert.Equal(t, "test-pmode", result.PMode.ID)
	assert.False(t, result.ViaDefaultPMode)

	require.Len(t, result.Parts, 1)
	assert.Equal(t, "application/xml", result.Parts[0].ContentType)
	assert.Equal(t, payload, result.Parts[0].Data)

	// The receipt is produced on the worker pool.
	env.pool.Drain()
	select {
	case receipt := <-env.receipts:
		sig := receiveSignal(t, env.sender, receipt)
		require.NotNil(t, sig.Receipt)
		assert.Equal(t, tm.MessageID, sig.MessageInfo.RefToMessageId)
		assert.Contains(t, string(sig.Receipt.Any), "NonRepudiationInformation")
	default:
		t.Fatal("no receipt was dispatched")
	}
}

func receiveSignal(t *testing.T, p *Pipeline, tm *TransportMessage) *message.SignalMessage {
	t.Helper()
	result, err := p.Receive(context.Background(), tm.Body, tm.ContentType)
	require.NoError(t, err)
	require.NotNil(t, result.Signal)
	return result.Signal
}

func TestPipeline_RoundTripBodyEncryption(t *testing.T) {
	pm := pmode.Default("test-pmode")
	pm.Security.EncryptionMode = pmode.EncryptBodyOnly
	pm.Payload.CompressPayloads = false
	env := newTestEndpoints(t, pm)

	tm, err := env.sender.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	result, err := env.receiver.Receive(context.Background(), tm.Body, tm.ContentType)
	require.NoError(t, err)
	require.NotNil(t, result.UserMessage)
	assert.Empty(t, result.Parts)
}

func TestPipeline_RoundTripPlaintext(t *testing.T) {
	pm := pmode.Default("test-pmode")
	pm.Security.Sign = false
	pm.Security.Encrypt = false
	pm.Payload.CompressPayloads = false
	env := newTestEndpoints(t, pm)

	payload := []byte("plain payload")
	tm, err := env.sender.Submit(context.Background(), testRequest(
		Payload{Data: payload, ContentType: "text/plain"},
	))
	require.NoError(t, err)

	result, err := env.receiver.Receive(context.Background(), tm.Body, tm.ContentType)
	require.NoError(t, err)
	require.Len(t, result.Parts, 1)
	assert.Equal(t, payload, result.Parts[0].Data)
}

func TestPipeline_DuplicateRejected(t *testing.T) {
	pm := pmode.Default("test-pmode")
	env := newTestEndpoints(t, pm)

	tm, err := env.sender.Submit(context.Background(), testRequest(
		Payload{Data: []byte("<Doc/>"), ContentType: "application/xml"},
	))
	require.NoError(t, err)

	_, err = env.receiver.Receive(context.Background(), tm.Body, tm.ContentType)
	require.NoError(t, err)

	_, err = env.receiver.Receive(context.Background(), tm.Body, tm.ContentType)
	require.Error(t, err)
	var dup *reliability.DuplicateMessageError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, tm.MessageID, dup.MessageID)

	env.pool.Drain()
}

func TestPipeline_ConcurrentDuplicates(t *testing.T) {
	pm := pmode.Default("test-pmode")
	pm.Security.Encrypt = false
	env := newTestEndpoints(t, pm)

	tm, err := env.sender.Submit(context.Background(), testRequest(
		Payload{Data: []byte("<Doc/>"), ContentType: "application/xml"},
	))
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	accepted := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.receiver.Receive(context.Background(), tm.Body, tm.ContentType); err == nil {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	env.pool.Drain()

	assert.Len(t, accepted, 1, "exactly one concurrent delivery must be accepted")
}

func TestPipeline_UnsignedMessageRejectedByPolicy(t *testing.T) {
	// Sender policy allows plaintext; receiver resolves a signing policy
	// for the same message and must reject it.
	plainPM := pmode.Default("test-pmode")
	plainPM.Security.Sign = false
	plainPM.Security.Encrypt = false
	plainPM.Payload.CompressPayloads = false
	env := newTestEndpoints(t, plainPM)

	tm, err := env.sender.Submit(context.Background(), testRequest())
	require.NoError(t, err)

	signingPM := pmode.Default("test-pmode")
	signingPM.Security.Encrypt = false
	_, err = env.receiver.store.Update(signingPM)
	require.NoError(t, err)

	_, err = env.receiver.Receive(context.Background(), tm.Body, tm.ContentType)
	assert.ErrorIs(t, err, ErrSignatureMissing)
}

func TestPipeline_ResolveViaDefault(t *testing.T) {
	pm := pmode.Default("fallback-pmode")
	pm.Security.Encrypt = false
	env := newTestEndpoints(t, pm)
	require.NoError(t, env.sender.store.SetDefault("fallback-pmode"))

	req := testRequest(Payload{Data: []byte("<Doc/>"), ContentType: "application/xml"})
	req.PModeID = "unknown-pmode"
	tm, err := env.sender.Submit(context.Background(), req)
	require.NoError(t, err)

	result, err := env.receiver.Receive(context.Background(), tm.Body, tm.ContentType)
	require.NoError(t, err)
	assert.Equal(t, "fallback-pmode", result.PMode.ID)

	env.pool.Drain()
}

func TestPipeline_UnknownPModeNoDefault(t *testing.T) {
	pm := pmode.Default("test-pmode")
	env := newTestEndpoints(t, pm)

	req := testRequest()
	req.PModeID = "missing"
	_, err := env.sender.Submit(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, pmode.ErrNotFound)
}

func TestPipeline_TamperedMessageRejected(t *testing.T) {
	pm := pmode.Default("test-pmode")
	pm.Security.Encrypt = false
	pm.Payload.CompressPayloads = false
	env := newTestEndpoints(t, pm)

	payload := []byte("original attachment content")
	tm, err := env.sender.Submit(context.Background(), testRequest(
		Payload{Data: payload, ContentType: "text/plain"},
	))
	require.NoError(t, err)

	// Flip the attachment bytes inside the MIME body.
	tampered := make([]byte, len(tm.Body))
	copy(tampered, tm.Body)
	idx := bytes.Index(tampered, payload)
	require.GreaterOrEqual(t, idx, 0)
	tampered[idx] ^= 0xFF

	_, err = env.receiver.Receive(context.Background(), tampered, tm.ContentType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")
}

func TestPipeline_BuildErrorSignal(t *testing.T) {
	pm := pmode.Default("test-pmode")
	env := newTestEndpoints(t, pm)

	tm, err := env.receiver.BuildErrorSignal(message.ErrOther, "msg-1@as4core", "duplicate message")
	require.NoError(t, err)

	sig := receiveSignal(t, env.sender, tm)
	require.NotNil(t, sig.Error)
	assert.Equal(t, "EBMS:0004", sig.Error.ErrorCode)
	assert.Equal(t, "msg-1@as4core", sig.Error.RefToMessageInError)
	assert.Equal(t, "duplicate message", sig.Error.ErrorDetail)
}

type stubRevocation struct {
	err error
}

func (s stubRevocation) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error {
	return s.err
}

func TestPipeline_RevokedPartnerCertificateRejected(t *testing.T) {
	senderKey, senderCert := generateKeyPair(t)
	receiverKey, receiverCert := generateKeyPair(t)

	store, err := pmode.NewStore(nil)
	require.NoError(t, err)
	pm := pmode.Default("test-pmode")
	pm.Security.Encrypt = false
	require.NoError(t, store.Create(pm))

	sender, err := NewPipeline(Config{
		Store: store,
		Material: Material{
			LocalKey:    senderKey,
			LocalCert:   senderCert,
			PartnerCert: receiverCert,
		},
	})
	require.NoError(t, err)

	newReceiver := func(checker security.RevocationChecker) *Pipeline {
		receiver, err := NewPipeline(Config{
			Store: store,
			Material: Material{
				LocalKey:    receiverKey,
				LocalCert:   receiverCert,
				PartnerCert: senderCert,
			},
			Revocation: checker,
		})
		require.NoError(t, err)
		return receiver
	}

	payload := []byte("<Order><Id>7</Id></Order>")
	tm, err := sender.Submit(context.Background(), testRequest(
		Payload{Data: payload, ContentType: "application/xml"},
	))
	require.NoError(t, err)

	// A revoked partner certificate aborts before verification.
	revoking := newReceiver(stubRevocation{err: security.ErrCertificateRevoked})
	_, err = revoking.Receive(context.Background(), tm.Body, tm.ContentType)
	assert.ErrorIs(t, err, security.ErrCertificateRevoked)

	// A clean check lets the same message through.
	clean := newReceiver(stubRevocation{})
	result, err := clean.Receive(context.Background(), tm.Body, tm.ContentType)
	require.NoError(t, err)
	require.Len(t, result.Parts, 1)
	assert.Equal(t, payload, result.Parts[0].Data)
}

func TestNewPipeline_RequiresStoreAndKeys(t *testing.T) {
	_, err := NewPipeline(Config{})
	require.Error(t, err)

	key, cert := generateKeyPair(t)
	_, err = NewPipeline(Config{Material: Material{LocalKey: key, LocalCert: cert}})
	require.Error(t, err)

	store, err := pmode.NewStore(nil)
	require.NoError(t, err)
	_, err = NewPipeline(Config{Store: store, Material: Material{LocalKey: key, LocalCert: cert}})
	require.NoError(t, err)
}
