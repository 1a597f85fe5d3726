// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Bucket: token bucket global usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de chamadas simultâneas
//   - Sessions: flags de cancelamento por sessão, com expiração e janitor
//   - MemoryStatsStore / RedisStatsStore / PromStatsStore: estatísticas da fila
package infra
