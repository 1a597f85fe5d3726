// Package domain define contratos e tipos de domínio da fila de requisições ao upstream.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar as regras de
// admissão/retry de detalhes de infraestrutura.
package domain
