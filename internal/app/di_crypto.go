package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	cryptoService "github.com/allisson/cryptoshred/internal/crypto/service"
)

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// EnvelopeCipher returns the envelope cipher used for payloads and DEKs.
func (c *Container) EnvelopeCipher() cryptoService.EnvelopeCipher {
	c.envelopeCipherInit.Do(func() {
		c.envelopeCipher = cryptoService.NewEnvelopeCipher(cryptoService.NewAEADManager())
	})
	return c.envelopeCipher
}

// MasterKeyChain returns the master key chain loaded from environment variables.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	var err error
	c.masterKeyChainInit.Do(func() {
		c.masterKeyChain, err = c.initMasterKeyChain()
		if err != nil {
			c.setInitError("masterKeyChain", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("masterKeyChain"); storedErr != nil {
		return nil, storedErr
	}
	return c.masterKeyChain, nil
}

// MasterKeyManager returns the master key manager over the loaded chain.
func (c *Container) MasterKeyManager() (cryptoService.MasterKeyManager, error) {
	var err error
	c.masterKeyManagerInit.Do(func() {
		c.masterKeyManager, err = c.initMasterKeyManager()
		if err != nil {
			c.setInitError("masterKeyManager", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("masterKeyManager"); storedErr != nil {
		return nil, storedErr
	}
	return c.masterKeyManager, nil
}

// initMasterKeyChain loads the master key chain, decrypting through KMS when configured.
func (c *Container) initMasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	masterKeyChain, err := cryptoService.LoadMasterKeyChain(
		context.Background(),
		cryptoService.MasterKeySource{
			Keys:              c.config.MasterKeys,
			ActiveVersion:     c.config.ActiveMasterKeyVersion,
			Passphrase:        c.config.MasterKeyPassphrase,
			Salt:              c.config.MasterKeySalt,
			PassphraseVersion: c.config.MasterKeyVersion,
			KMSProvider:       c.config.KMSProvider,
			KMSKeyURI:         c.config.KMSKeyURI,
		},
		c.KMSService(),
		c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key chain: %w", err)
	}
	return masterKeyChain, nil
}

func (c *Container) initMasterKeyManager() (cryptoService.MasterKeyManager, error) {
	chain, err := c.MasterKeyChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key chain for master key manager: %w", err)
	}
	return cryptoService.NewMasterKeyManager(chain, c.EnvelopeCipher()), nil
}
