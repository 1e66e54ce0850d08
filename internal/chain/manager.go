package chain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blues/donation/internal/config"
	"github.com/blues/donation/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ReceiptSource 单个网络的收据与最新高度查询，*ethclient.Client 直接满足
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Network 已连接的网络
type Network struct {
	Name          string
	ChainId       int64
	Confirmations uint64
	Source        ReceiptSource
	client        *ethclient.Client
}

// Manager 多网络客户端管理器，按网络名索引
type Manager struct {
	mu       sync.RWMutex
	networks map[string]*Network
}

// NewManager 连接所有启用的网络
func NewManager(cfg config.ChainConfig) (*Manager, error) {
	manager := &Manager{networks: make(map[string]*Network)}

	var initErrors []error
	for name, netCfg := range cfg.Networks {
		if !netCfg.Enabled {
			logger.Info("Skipping disabled network: %s", name)
			continue
		}

		client, err := dial(name, netCfg)
		if err != nil {
			logger.Error("Failed to connect network %s: %v", name, err)
			initErrors = append(initErrors, err)
			continue
		}
		guarded := NewGuardedSource(name, client, GuardOptions{
			RatePerSecond: netCfg.RateLimit,
			Burst:         netCfg.Burst,
		})
		manager.Register(name, netCfg.ChainId, netCfg.Confirmations, guarded)
		manager.networks[strings.ToLower(name)].client = client
	}

	// 如果有错误，返回第一个错误
	if len(initErrors) > 0 {
		manager.Close()
		return nil, initErrors[0]
	}

	logger.Info("Successfully initialized %d networks", len(manager.networks))
	return manager, nil
}

// Register 注册网络的收据来源
func (m *Manager) Register(name string, chainId int64, confirmations uint64, source ReceiptSource) {
	if confirmations == 0 {
		confirmations = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.networks == nil {
		m.networks = make(map[string]*Network)
	}
	m.networks[strings.ToLower(name)] = &Network{
		Name:          strings.ToLower(name),
		ChainId:       chainId,
		Confirmations: confirmations,
		Source:        source,
	}
}

// dial 创建客户端并校验链ID
func dial(name string, cfg config.NetworkConfig) (*ethclient.Client, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured for network %s", name)
	}

	logger.Info("Creating %s client connection (chain id: %d)", name, cfg.ChainId)
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chainId, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("client connection test failed (%s): %w", name, err)
	}
	if cfg.ChainId != 0 && chainId.Int64() != cfg.ChainId {
		client.Close()
		return nil, fmt.Errorf("network %s reports chain id %d, expected %d", name, chainId.Int64(), cfg.ChainId)
	}
	return client, nil
}

// Network 按名称查找网络，大小写不敏感
func (m *Manager) Network(name string) (*Network, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.networks[strings.ToLower(name)]
	return n, ok
}

// Names 已注册的网络名
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.networks))
	for name := range m.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetHealthStatus 获取健康状态
func (m *Manager) GetHealthStatus(ctx context.Context) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := make(map[string]interface{}, len(m.networks))
	for name, n := range m.networks {
		status := map[string]interface{}{
			"chain_id":      n.ChainId,
			"confirmations": n.Confirmations,
			"client_status": "connected",
		}
		if head, err := n.Source.BlockNumber(ctx); err != nil {
			status["client_status"] = "disconnected"
		} else {
			status["head"] = head
		}
		if g, ok := n.Source.(*GuardedSource); ok {
			status["breaker"] = g.State()
		}
		health[name] = status
	}
	return health
}

// Close 关闭管理器
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.networks {
		if n.client != nil {
			n.client.Close()
		}
	}
	logger.Info("Chain manager closed")
}
