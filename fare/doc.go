// Package fare define os tipos de domínio do núcleo de tarifas (consulta, dia de tarifa,
// intervalos, trechos, identidade de conexão) e as regras puras sobre eles:
//
//   - Query.Key: chave canônica do cache
//   - RouteHash: chave natural de uma conexão no armazenamento
//   - NormalizeStationID: remove o token volátil de timestamp dos ids de estação
//   - ParseBestPrice / ParseStations: decodificação das respostas do upstream
//   - Filter: filtros de horário e de baldeações aplicados sobre dados já em cache
//
// Este pacote não conhece HTTP nem armazenamento.
package fare
