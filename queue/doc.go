// Package queue é o ponto único de saída para o upstream de tarifas: toda chamada
// passa por aqui para ser ritmada, limitada em concorrência e repetida após 429.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (Work, Outcome, Result, Limiter, SlotPool, SessionRegistry)
//   - application: casos de uso (classificação, política de retry, aquisição de vaga)
//   - infra: implementações concretas (token bucket, semáforo, flags de sessão, stats)
//   - queue (este pacote): o serviço Queue que costura tudo
//
// Fluxo de Submit:
//
//  1. Verifica se a sessão já foi cancelada (não chama o trabalho)
//  2. Enfileira (FIFO) para o laço de admissão
//  3. Admissão: vaga de concorrência -> token do bucket -> nova verificação de cancelamento
//  4. Despacha o trabalho; 429/erro de rede voltam ao fim da fila após backoff
//
// O cancelamento é cooperativo: uma chamada já enviada ao upstream sempre termina,
// e o resultado é apenas descartado.
package queue
